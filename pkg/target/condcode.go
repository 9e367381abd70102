package target

// CondCode is the classification a compare leaves for conditional jumps
type CondCode int

const (
	CCInvalid CondCode = -1
	CCEQ      CondCode = 0
	CCNE      CondCode = 1
	CCGR      CondCode = 2
	CCLS      CondCode = 3
	CCGE      CondCode = 4
	CCLE      CondCode = 5
)

// String returns the assembly suffix of the code
func (cc CondCode) String() string {
	switch cc {
	case CCEQ:
		return "eq"
	case CCNE:
		return "ne"
	case CCGR:
		return "gr"
	case CCLS:
		return "ls"
	case CCGE:
		return "ge"
	case CCLE:
		return "le"
	}
	return "cc_error"
}

// Valid reports whether cc is one of the six real codes
func (cc CondCode) Valid() bool { return cc >= CCEQ && cc <= CCLE }

// ParseCondCode maps an assembly suffix back to its code
func ParseCondCode(s string) CondCode {
	for cc := CCEQ; cc <= CCLE; cc++ {
		if cc.String() == s {
			return cc
		}
	}
	return CCInvalid
}
