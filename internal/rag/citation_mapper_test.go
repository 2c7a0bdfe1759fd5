package rag

import (
	"reflect"
	"testing"
)

func TestCitationMapper_Map(t *testing.T) {
	built := BuiltContext{
		Citations: []CitationEntry{
			{N: 1, DocumentID: "a", Title: "A", ChunkIndex: 0},
			{N: 2, DocumentID: "b", Title: "B", ChunkIndex: 4},
			{N: 3, DocumentID: "c", Title: "C", ChunkIndex: -1},
		},
		UsedK: 3,
	}

	got := CitationMapper{}.Map([]int{2, 1, 2, 3}, built)
	want := []Citation{
		{DocumentID: "b", Title: "B", ChunkIndex: 4},
		{DocumentID: "a", Title: "A", ChunkIndex: 0},
		{DocumentID: "c", Title: "C", ChunkIndex: -1},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Map() = %+v, want %+v", got, want)
	}

	if got := (CitationMapper{}).Map([]int{9, 0}, built); got == nil || len(got) != 0 {
		t.Errorf("unmatched numbers = %#v, want empty", got)
	}
	if got := (CitationMapper{}).Map(nil, built); got == nil || len(got) != 0 {
		t.Errorf("nil numbers = %#v, want empty", got)
	}
}
