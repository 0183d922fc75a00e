package organization

import "fmt"

// ValidateDepartmentTree reports the first department that is its own
// ancestor. Parents outside the slice end the walk.
func ValidateDepartmentTree(departments []Department) error {
	parents := make(map[string]*string, len(departments))
	for i := range departments {
		parents[departments[i].ID] = departments[i].ParentID
	}

	for _, d := range departments {
		seen := map[string]bool{d.ID: true}
		for p := d.ParentID; p != nil; p = parents[*p] {
			if seen[*p] {
				return fmt.Errorf("department %s: parent chain loops through %s", d.ID, *p)
			}
			seen[*p] = true
			if _, ok := parents[*p]; !ok {
				break
			}
		}
	}
	return nil
}
