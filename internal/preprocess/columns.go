package preprocess

// The mushroom feature contract every shipped model is trained on. The
// catalog stores the same split per descriptor; these constants seed the
// catalog and back the tests.
var (
	NumericColumns = []string{"cap-diameter", "stem-height", "stem-width"}

	CategoricalColumns = []string{
		"cap-shape", "cap-surface", "cap-color", "does-bruise-or-bleed",
		"gill-attachment", "gill-spacing", "gill-color",
		"stem-surface", "stem-color", "has-ring", "ring-type", "habitat", "season",
	}
)

// RequiredColumns returns every column a submission must carry.
func RequiredColumns() []string {
	cols := make([]string, 0, len(NumericColumns)+len(CategoricalColumns))
	cols = append(cols, NumericColumns...)
	cols = append(cols, CategoricalColumns...)
	return cols
}
