package rag

import (
	"reflect"
	"testing"
)

func TestNormalizeHistoryPairsAdjacentTurns(t *testing.T) {
	turns := NormalizeHistory([]Message{
		{Role: RoleUser, Content: "a"},
		{Role: RoleAssistant, Content: "b"},
		{Role: RoleUser, Content: "c"},
		{Role: RoleAssistant, Content: "d"},
	})
	want := []ChatTurn{{User: "a", Assistant: "b"}, {User: "c", Assistant: "d"}}
	if !reflect.DeepEqual(turns, want) {
		t.Fatalf("turns = %v, want %v", turns, want)
	}
}

func TestNormalizeHistoryDropsTrailingUser(t *testing.T) {
	turns := NormalizeHistory([]Message{
		{Role: RoleUser, Content: "a"},
		{Role: RoleAssistant, Content: "b"},
		{Role: RoleUser, Content: "c"},
	})
	want := []ChatTurn{{User: "a", Assistant: "b"}}
	if !reflect.DeepEqual(turns, want) {
		t.Fatalf("turns = %v, want %v", turns, want)
	}
}

func TestNormalizeHistorySkipsLeadingAssistant(t *testing.T) {
	turns := NormalizeHistory([]Message{
		{Role: RoleAssistant, Content: "hello"},
		{Role: RoleUser, Content: "a"},
		{Role: RoleAssistant, Content: "b"},
	})
	want := []ChatTurn{{User: "a", Assistant: "b"}}
	if !reflect.DeepEqual(turns, want) {
		t.Fatalf("turns = %v, want %v", turns, want)
	}
}

func TestNormalizeHistorySkipsDoubledUser(t *testing.T) {
	turns := NormalizeHistory([]Message{
		{Role: RoleUser, Content: "first"},
		{Role: RoleUser, Content: "a"},
		{Role: RoleAssistant, Content: "b"},
	})
	want := []ChatTurn{{User: "a", Assistant: "b"}}
	if !reflect.DeepEqual(turns, want) {
		t.Fatalf("turns = %v, want %v", turns, want)
	}
}

func TestNormalizeHistoryEmpty(t *testing.T) {
	if turns := NormalizeHistory(nil); len(turns) != 0 {
		t.Fatalf("expected no turns, got %v", turns)
	}
	if turns := NormalizeHistory([]Message{{Role: RoleUser, Content: "only"}}); len(turns) != 0 {
		t.Fatalf("expected no turns for a single message, got %v", turns)
	}
}
