package main

import "testing"

func TestPromptGate_AnswersOncePerPrompt(t *testing.T) {
	var g promptGate

	if !g.shouldAnswer("name? ") {
		t.Fatal("fresh prompt should be answered")
	}
	g.noteAnswered("name? ")

	if g.shouldAnswer("name? ") {
		t.Error("stale prompt must not be answered again")
	}
	if !g.shouldAnswer("age? ") {
		t.Error("a different prompt should be answered")
	}
}

func TestPromptGate_OutputRearmsIdenticalPrompt(t *testing.T) {
	var g promptGate

	g.noteAnswered("guess: ")
	if g.shouldAnswer("guess: ") {
		t.Fatal("answered prompt should be collapsed until output arrives")
	}

	g.noteOutput()
	if !g.shouldAnswer("guess: ") {
		t.Error("output means the code moved on; the same prompt text is a new prompt")
	}
}

func TestPromptGate_IgnoresEmptyPrompt(t *testing.T) {
	var g promptGate
	if g.shouldAnswer("") {
		t.Error("empty slot is not a prompt")
	}
}
