package advice

import "github.com/vybium/vybium-advice/internal/vybium-advice/core"

// The advice stack is a slice whose last element is the top.
//
// Two ordering conventions are load-bearing and nothing checks them at run
// time, so they live here and are tested on their own:
//   - initial inputs are declared top-first and are reversed on load, so the
//     first declared value is the first one popped;
//   - map values are pushed in reverse, so the first stored value ends up on
//     top and values pop in their stored order.

// loadStack converts top-first inputs into the internal bottom-first layout
func loadStack(topFirst []core.Felt) []core.Felt {
	stack := make([]core.Felt, len(topFirst))
	for i, v := range topFirst {
		stack[len(topFirst)-1-i] = v
	}
	return stack
}

// appendReversed pushes values so that values[0] ends on top
func appendReversed(stack []core.Felt, values []core.Felt) []core.Felt {
	for i := len(values) - 1; i >= 0; i-- {
		stack = append(stack, values[i])
	}
	return stack
}

// wordFromTop assembles the top four elements into a word. The top element
// becomes the first component.
func wordFromTop(stack []core.Felt) core.Word {
	n := len(stack)
	return core.Word{stack[n-1], stack[n-2], stack[n-3], stack[n-4]}
}

// topFirst returns a copy of the stack with the top element first
func topFirst(stack []core.Felt) []core.Felt {
	return loadStack(stack)
}
