package collective

import "testing"

func TestNaiveReducer(t *testing.T) {
	RunReducerTests(t, NaiveReducer{})
}

func TestNaiveReducerGroup(t *testing.T) {
	RunReducerGroupTests(t, NaiveReducer{})
}

func TestTreeReducer(t *testing.T) {
	RunReducerTests(t, TreeReducer{})
}

func TestTreeReducerGroup(t *testing.T) {
	RunReducerGroupTests(t, TreeReducer{})
}

func TestStreamReducer(t *testing.T) {
	RunReducerTests(t, StreamReducer{})
}

func TestStreamReducerGroup(t *testing.T) {
	RunReducerGroupTests(t, StreamReducer{})
}

func TestStreamReducerGranular(t *testing.T) {
	RunReducerTests(t, StreamReducer{Granularity: 4})
}
