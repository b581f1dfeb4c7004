package rules

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEngine_Compile(t *testing.T) {
	e := MustNewEngine()

	assert.NoError(t, e.Compile(""))
	assert.NoError(t, e.Compile(`subtotal >= 50.0 && currency == "USD"`))
	assert.Error(t, e.Compile(`subtotal +`), "syntax error")
	assert.Error(t, e.Compile(`subtotal * 2.0`), "non-bool result")
	assert.Error(t, e.Compile(`unknown_var == 1`), "undeclared variable")
}

func TestEngine_Evaluate(t *testing.T) {
	e := MustNewEngine()
	facts := Facts{
		Subtotal:     80,
		Currency:     "USD",
		CourseID:     "c1",
		CategoryID:   "design",
		PricingModel: "one_time",
		UserID:       "user_1",
	}

	tests := []struct {
		expr string
		want bool
	}{
		{"", true},
		{`subtotal >= 50.0`, true},
		{`subtotal > 100.0`, false},
		{`category_id == "design" && pricing_model != "subscription"`, true},
		{`course_id in ["c2", "c3"]`, false},
		{`user_id.startsWith("user_")`, true},
	}

	for _, tc := range tests {
		t.Run(tc.expr, func(t *testing.T) {
			got, err := e.Evaluate(tc.expr, facts)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestEngine_EvaluateInvalid(t *testing.T) {
	_, err := MustNewEngine().Evaluate(`subtotal`, Facts{})
	assert.Error(t, err)
}

func TestEngine_ConcurrentCache(t *testing.T) {
	e := MustNewEngine()
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := e.Evaluate(`subtotal > 1.0`, Facts{Subtotal: 2})
			assert.NoError(t, err)
			assert.True(t, ok)
		}()
	}
	wg.Wait()
}
