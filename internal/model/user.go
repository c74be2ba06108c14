package model

const PermManageContent = "manage_content"

type User struct {
	Name         string
	PasswordHash string
	Permissions  []string
}

func (u *User) HasPermission(perm string) bool {
	if u == nil {
		return false
	}
	for _, p := range u.Permissions {
		if p == perm {
			return true
		}
	}
	return false
}
