package model

// Role is a character card dealt to a player at game start
type Role string

const (
	RoleMerlin       Role = "MERLIN"
	RolePercival     Role = "PERCIVAL"
	RoleLoyalServant Role = "LOYAL_SERVANT"
	RoleMorgana      Role = "MORGANA"
	RoleMordred      Role = "MORDRED"
	RoleOberon       Role = "OBERON"
	RoleAssassin     Role = "ASSASSIN"
	RoleMinion       Role = "MINION"
)

// Alignment is the side a role plays for
type Alignment string

const (
	AlignmentGood Alignment = "GOOD"
	AlignmentEvil Alignment = "EVIL"
)

// RoleInfo is a role's entry in the catalog
type RoleInfo struct {
	Alignment Alignment
	// Knows maps each role this role can identify to the alignment it appears to have
	Knows map[Role]Alignment
}

// roleCatalog is the single source of truth for alignment and knowledge.
// Percival sees Merlin and Morgana but cannot tell them apart, so both appear good.
var roleCatalog = map[Role]RoleInfo{
	RoleMerlin: {
		Alignment: AlignmentGood,
		Knows: map[Role]Alignment{
			RoleMorgana:  AlignmentEvil,
			RoleMordred:  AlignmentEvil,
			RoleAssassin: AlignmentEvil,
			RoleMinion:   AlignmentEvil,
		},
	},
	RolePercival: {
		Alignment: AlignmentGood,
		Knows: map[Role]Alignment{
			RoleMerlin:  AlignmentGood,
			RoleMorgana: AlignmentGood,
		},
	},
	RoleLoyalServant: {
		Alignment: AlignmentGood,
		Knows:     map[Role]Alignment{},
	},
	RoleMorgana: {
		Alignment: AlignmentEvil,
		Knows: map[Role]Alignment{
			RoleMordred:  AlignmentEvil,
			RoleAssassin: AlignmentEvil,
			RoleMinion:   AlignmentEvil,
		},
	},
	RoleMordred: {
		Alignment: AlignmentEvil,
		Knows: map[Role]Alignment{
			RoleMorgana:  AlignmentEvil,
			RoleAssassin: AlignmentEvil,
			RoleMinion:   AlignmentEvil,
		},
	},
	RoleOberon: {
		Alignment: AlignmentEvil,
		Knows:     map[Role]Alignment{},
	},
	RoleAssassin: {
		Alignment: AlignmentEvil,
		Knows: map[Role]Alignment{
			RoleMorgana: AlignmentEvil,
			RoleMordred: AlignmentEvil,
			RoleMinion:  AlignmentEvil,
		},
	},
	RoleMinion: {
		Alignment: AlignmentEvil,
		Knows: map[Role]Alignment{
			RoleMorgana:  AlignmentEvil,
			RoleMordred:  AlignmentEvil,
			RoleAssassin: AlignmentEvil,
			RoleMinion:   AlignmentEvil,
		},
	},
}

// AllRoles returns every role in the catalog in a stable order
func AllRoles() []Role {
	return []Role{
		RoleMerlin,
		RolePercival,
		RoleLoyalServant,
		RoleMorgana,
		RoleMordred,
		RoleOberon,
		RoleAssassin,
		RoleMinion,
	}
}

// IsValid returns true if the role is in the catalog
func (r Role) IsValid() bool {
	_, ok := roleCatalog[r]
	return ok
}

// Alignment returns the role's alignment, or "" for unknown roles
func (r Role) Alignment() Alignment {
	return roleCatalog[r].Alignment
}

// IsEvil returns true if the role plays for evil
func (r Role) IsEvil() bool {
	return r.Alignment() == AlignmentEvil
}

// CanFailQuest returns true if the role may submit a failing mission result
func (r Role) CanFailQuest() bool {
	return r.IsEvil()
}

// Identifies reports whether r can see other, and the alignment other appears to have
func (r Role) Identifies(other Role) (Alignment, bool) {
	alignment, ok := roleCatalog[r].Knows[other]
	return alignment, ok
}
