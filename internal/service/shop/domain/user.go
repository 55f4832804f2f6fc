// internal/service/shop/domain/user.go
package domain

// Role 定义了用户角色。
type Role string

const (
	RoleAdmin Role = "admin"
	RoleUser  Role = "user"
)

// User 是静态用户目录中的账号。演示环境下密码以明文保存。
type User struct {
	ID       string `json:"id"`
	Email    string `json:"email"`
	Password string `json:"-"`
	Name     string `json:"name"`
	Role     Role   `json:"role"`
}

func (u User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

// UserDirectory 只读用户目录，仅支持登录查询。
type UserDirectory struct {
	users []User
}

func NewUserDirectory(users []User) *UserDirectory {
	d := &UserDirectory{users: make([]User, len(users))}
	copy(d.users, users)
	return d
}

// FindUser 按 (email, password) 精确匹配。
func (d *UserDirectory) FindUser(email, password string) (User, bool) {
	for _, u := range d.users {
		if u.Email == email && u.Password == password {
			return u, true
		}
	}
	return User{}, false
}

func (d *UserDirectory) FindByID(id string) (User, bool) {
	for _, u := range d.users {
		if u.ID == id {
			return u, true
		}
	}
	return User{}, false
}

func DefaultUsers() []User {
	return []User{
		{ID: "1", Email: "admin@example.com", Password: "admin123", Name: "Admin User", Role: RoleAdmin},
		{ID: "2", Email: "client@example.com", Password: "client123", Name: "Regular User", Role: RoleUser},
	}
}
