package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTokenUsage_Add(t *testing.T) {
	var u TokenUsage
	u.Add(CategoryTemplate, 10)
	u.Add(CategoryVIPChunks, 100)
	u.Add(CategoryChunks, 25)
	u.Add(CategoryFacts, 5)

	assert.Equal(t, 10, u.Template)
	assert.Equal(t, 100, u.VIPChunks)
	assert.Equal(t, 140, u.Total)
	assert.Equal(t, 30, u.NonVIP())
}

func TestItemCounts_Inc(t *testing.T) {
	var c ItemCounts
	c.Inc(CategoryChunks)
	c.Inc(CategoryChunks)
	c.Inc(CategoryUserContext)
	c.Inc(CategoryTemplate)

	assert.Equal(t, 2, c.Chunks)
	assert.Equal(t, 1, c.UserContext)
}

func TestGenerationContext_IsViable(t *testing.T) {
	tpl := &Template{ID: "t1", Sections: []string{"hook"}}

	tests := []struct {
		name     string
		gc       *GenerationContext
		expected bool
	}{
		{"Nil", nil, false},
		{"NoTemplate", &GenerationContext{Chunks: []Chunk{{ID: "c1"}}}, false},
		{"TemplateOnly", &GenerationContext{Template: tpl}, false},
		{"TemplateAndChunk", &GenerationContext{Template: tpl, Chunks: []Chunk{{ID: "c1"}}}, true},
		{"TemplateAndVIPFact", &GenerationContext{Template: tpl, VIPFacts: []Fact{{ID: "f1"}}}, true},
		{"TemplateAndUserText", &GenerationContext{Template: tpl, UserContext: "about me"}, true},
		{"BusinessContextDoesNotCount", &GenerationContext{Template: tpl, BusinessContext: "acme"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.gc.IsViable())
		})
	}
}
