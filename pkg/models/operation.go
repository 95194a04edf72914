package models

const (
	OperationBlur      = "blur"
	OperationResize    = "resize"
	OperationGrayscale = "grayscale"
)

var validOperations = map[string]bool{
	OperationBlur:      true,
	OperationResize:    true,
	OperationGrayscale: true,
}

// ValidOperation reports whether kind is one of the supported transforms.
// Unknown kinds are rejected before any job or task state is created.
func ValidOperation(kind string) bool {
	return validOperations[kind]
}

// Operations returns the supported operation kinds.
func Operations() []string {
	return []string{OperationBlur, OperationResize, OperationGrayscale}
}
