package model

// Role levels: 1 is the most privileged tier.
const (
	RoleLevelAdmin      = 1
	RoleLevelSupervisor = 4
)

// swagger:model Role
type Role struct {
	BaseModel
	Name        string `gorm:"size:100;unique;not null" json:"name"`
	Level       int    `gorm:"not null;index" json:"level"`
	Description string `gorm:"type:text" json:"description"`
}

func (Role) TableName() string {
	return "roles"
}

// swagger:model User
type User struct {
	BaseModel
	Name     string `gorm:"size:100;not null" json:"name"`
	Email    string `gorm:"size:100;unique;not null" json:"email"`
	RoleID   uint   `gorm:"index;not null" json:"roleId"`
	Role     *Role  `gorm:"foreignKey:RoleID" json:"role,omitempty"`
	ParentID *uint  `gorm:"index" json:"parentId,omitempty"` // supervisor
	IsActive bool   `gorm:"default:true" json:"isActive"`
}

func (User) TableName() string {
	return "users"
}

// HierarchyNode is one row of the parent/role table the visibility resolver walks.
type HierarchyNode struct {
	ID        uint  `json:"id"`
	ParentID  *uint `json:"parentId,omitempty"`
	RoleLevel int   `json:"roleLevel"`
}
