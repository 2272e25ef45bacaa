package main

// Team is the victory camp a role belongs to.
type Team string

const (
	TeamVillager Team = "villager"
	TeamWerewolf Team = "werewolf"
)

// Role is the closed set of roles a player can hold. Handlers and the state
// machine switch over it exhaustively; adding a role is a compile-visible
// change here plus the switches below.
type Role string

const (
	RoleVillager  Role = "villager"
	RoleWerewolf  Role = "werewolf"
	RoleWhiteWolf Role = "white_wolf"
	RoleSeer      Role = "seer"
	RoleWitch     Role = "witch"
	RoleHunter    Role = "hunter"
	RoleCupid     Role = "cupid"
	RoleProtector Role = "protector"
	RoleThief     Role = "thief"
)

// allRoles lists every valid role, used for composition validation and the
// thief's spare cards.
var allRoles = []Role{
	RoleVillager,
	RoleWerewolf,
	RoleWhiteWolf,
	RoleSeer,
	RoleWitch,
	RoleHunter,
	RoleCupid,
	RoleProtector,
	RoleThief,
}

// Team returns the camp the role wins with.
func (r Role) Team() Team {
	switch r {
	case RoleWerewolf, RoleWhiteWolf:
		return TeamWerewolf
	case RoleVillager, RoleSeer, RoleWitch, RoleHunter, RoleCupid, RoleProtector, RoleThief:
		return TeamVillager
	default:
		return TeamVillager
	}
}

func (r Role) String() string {
	return string(r)
}

// IsWolf reports whether the role wakes with the wolf pack.
func (r Role) IsWolf() bool {
	return r.Team() == TeamWerewolf
}

// roleFromName parses a role name read back from storage.
func roleFromName(name string) (Role, bool) {
	for _, r := range allRoles {
		if string(r) == name {
			return r, true
		}
	}
	return "", false
}
