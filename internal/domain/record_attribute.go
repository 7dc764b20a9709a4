package domain

// Level is the depth of a RecordAttribute in the domain → category → title tree.
type Level int

const (
	LevelDomain   Level = 0
	LevelCategory Level = 1
	LevelTitle    Level = 2
)

const (
	MaxAttributeName  = 60
	MaxAttributeColor = 8
)

func (l Level) String() string {
	switch l {
	case LevelDomain:
		return "domain"
	case LevelCategory:
		return "category"
	case LevelTitle:
		return "title"
	default:
		return "unknown"
	}
}

// RecordAttribute is a user-scoped label. Domains have no parent, categories
// hang off a domain and titles off a category.
type RecordAttribute struct {
	ID       int64
	Name     string
	ParentID *int64
	UserID   int64
	Level    Level
	Color    *string
}

// ValidateAttributeName checks the stored name constraints.
func ValidateAttributeName(field, name string) error {
	if name == "" {
		return Invalid(field, "is required")
	}
	if len([]rune(name)) > MaxAttributeName {
		return Invalid(field, "must be at most 60 characters")
	}
	return nil
}

// ValidateColor accepts nil or a value that fits the color column.
func ValidateColor(color *string) error {
	if color != nil && len(*color) > MaxAttributeColor {
		return Invalid("color", "must be at most 8 characters")
	}
	return nil
}
