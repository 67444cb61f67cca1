package advice

import "github.com/vybium/vybium-advice/internal/vybium-advice/core"

// AdviceSource describes what PushStack places on the advice stack.
// It is implemented only by ValueSource and MapSource.
type AdviceSource interface {
	isAdviceSource()
}

// ValueSource pushes a single element
type ValueSource struct {
	Value core.Felt
}

// MapSource pushes the values stored under Key in the advice map. When
// IncludeLen is set the number of values is pushed on top of them.
type MapSource struct {
	Key        core.Word
	IncludeLen bool
}

func (ValueSource) isAdviceSource() {}
func (MapSource) isAdviceSource()   {}
