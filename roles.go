package auth

// Role governs administrative privilege
type Role string

const (
	// RoleUser is a regular account
	RoleUser Role = "user"
	// RoleAdmin can moderate content and edit other users
	RoleAdmin Role = "admin"
)

// Rank is the membership tier, independent from Role
type Rank string

const (
	// RankGuest is the default tier after registration
	RankGuest Rank = "guest"
	// RankMember is reached by redeeming a member code
	RankMember Rank = "member"
)

var roleHierarchy = map[Role]int{
	RoleUser:  0,
	RoleAdmin: 1,
}

var rankHierarchy = map[Rank]int{
	RankGuest:  0,
	RankMember: 1,
}

// IsValid checks if the role is one of the predefined valid roles
func (r Role) IsValid() bool {
	_, ok := roleHierarchy[r]
	return ok
}

// IsAtLeast checks if this role meets the minimum required level
func (r Role) IsAtLeast(minRole Role) bool {
	current, ok := roleHierarchy[r]
	if !ok {
		return false
	}
	min, ok := roleHierarchy[minRole]
	if !ok {
		return false
	}
	return current >= min
}

// IsValid checks if the rank is one of the predefined valid ranks
func (r Rank) IsValid() bool {
	_, ok := rankHierarchy[r]
	return ok
}

// IsAtLeast checks if this rank meets the minimum required level
func (r Rank) IsAtLeast(minRank Rank) bool {
	current, ok := rankHierarchy[r]
	if !ok {
		return false
	}
	min, ok := rankHierarchy[minRank]
	if !ok {
		return false
	}
	return current >= min
}

// ParseRole safely parses a string into a Role
func ParseRole(s string) (Role, bool) {
	role := Role(s)
	return role, role.IsValid()
}

// ParseRank safely parses a string into a Rank
func ParseRank(s string) (Rank, bool) {
	rank := Rank(s)
	return rank, rank.IsValid()
}

// CanGrantRole reports whether an actor holding actor may assign target.
// Nobody can hand out more privilege than they hold.
func CanGrantRole(actor, target Role) bool {
	return target.IsValid() && actor.IsAtLeast(target)
}

// CanGrantRank reports whether an actor holding actor may assign target
func CanGrantRank(actor, target Rank) bool {
	return target.IsValid() && actor.IsAtLeast(target)
}
