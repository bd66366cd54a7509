package library

import "fmt"

// Kind determines what a session may do: define operators for a fresh
// namespace, extend an existing namespace with more definitions, or
// attach implementations.
type Kind int

const (
	KindDef Kind = iota
	KindFragment
	KindImpl
)

func (k Kind) String() string {
	switch k {
	case KindDef:
		return "def"
	case KindFragment:
		return "fragment"
	case KindImpl:
		return "impl"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}
