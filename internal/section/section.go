package section

// Name identifies a canonical paper section. The set is closed: adding a
// section means adding a constant and a pattern group, not editing a table
// at runtime.
type Name string

const (
	NameObjective    Name = "objective" // abstract / summary
	NameOther        Name = "other"     // introduction / background
	NameStudyDesign  Name = "study_design"
	NameMethods      Name = "methods"
	NameResults      Name = "results"
	NameDiscussion   Name = "discussion"
	NameLimitations  Name = "limitations"
	NameConclusions  Name = "conclusions"
	NameKeywords     Name = "keywords"
	NameUnclassified Name = "unclassified" // text before the first recognized heading
)

// Section is a named, contiguous span of a document's text. Created once by
// the Parser and immutable afterwards; Order reflects the position of the
// name's first occurrence in the source document.
type Section struct {
	Name    Name
	Content string
	Order   int
}
