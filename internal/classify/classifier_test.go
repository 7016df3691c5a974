package classify

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zenorc/zenorc/internal/model"
)

func TestClassifier_Classify(t *testing.T) {
	tests := []struct {
		name       string
		policy     Policy
		n          model.Notification
		wantAccept bool
		wantTxnID  string
	}{
		{
			name:   "marker and credit language in body",
			policy: DefaultPolicy([]string{"AMT5"}),
			n: model.Notification{
				Body: "AMT5 credited, Reference No: 12345678",
			},
			wantAccept: true,
			wantTxnID:  "12345678",
		},
		{
			name:   "marker in subject, reference in body",
			policy: DefaultPolicy([]string{"₹5"}),
			n: model.Notification{
				Subject: "₹5 credited to your account",
				Body:    "Dear customer, Reference No. 87654321",
			},
			wantAccept: true,
			wantTxnID:  "87654321",
		},
		{
			name:   "no marker",
			policy: DefaultPolicy([]string{"₹5"}),
			n: model.Notification{
				Body: "Rs 500 credited, Reference No: 11111111",
			},
			wantAccept: false,
		},
		{
			name:   "credit and debit wording is ambiguous",
			policy: DefaultPolicy([]string{"AMT5"}),
			n: model.Notification{
				Body: "AMT5 credited to your account, later reversed and debited",
			},
			wantAccept: false,
		},
		{
			name:   "debit only",
			policy: DefaultPolicy([]string{"Rs 5"}),
			n: model.Notification{
				Body: "Rs 5 debited from your account, Reference No: 22222222",
			},
			wantAccept: false,
		},
		{
			name:   "missing credit language",
			policy: DefaultPolicy([]string{"Rs 5"}),
			n: model.Notification{
				Body: "Rs 5 transferred, Reference No: 33333333",
			},
			wantAccept: false,
		},
		{
			name: "lenient policy accepts without credit language",
			policy: Policy{
				Markers: []string{"Rs 5"},
			},
			n: model.Notification{
				Body: "Rs 5 transferred, Reference No: 33333333",
			},
			wantAccept: true,
			wantTxnID:  "33333333",
		},
		{
			name: "lenient policy ignores debit wording",
			policy: Policy{
				Markers:               []string{"Rs 5"},
				CreditWords:           []string{"credited"},
				RequireCreditLanguage: true,
			},
			n: model.Notification{
				Body: "Rs 5 credited then debited, Reference No: 44444444",
			},
			wantAccept: true,
			wantTxnID:  "44444444",
		},
		{
			name: "case sensitive marker mismatch",
			policy: Policy{
				Markers:       []string{"AMT5"},
				CaseSensitive: true,
			},
			n: model.Notification{
				Body: "amt5 credited, Reference No: 55555555",
			},
			wantAccept: false,
		},
		{
			name:   "upi reference preferred over generic pattern",
			policy: DefaultPolicy([]string{"Rs 5"}),
			n: model.Notification{
				Body: "Rs 5 credited via UPI Ref No 998877665544",
			},
			wantAccept: true,
			wantTxnID:  "998877665544",
		},
		{
			name:   "txn id pattern",
			policy: DefaultPolicy([]string{"Rs 5"}),
			n: model.Notification{
				Body: "Rs 5 received. Txn ID: AXIS123456",
			},
			wantAccept: true,
			wantTxnID:  "AXIS123456",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := New(tt.policy)
			result := c.Classify(tt.n)

			assert.Equal(t, tt.wantAccept, result.Accepted)
			if tt.wantAccept {
				assert.Equal(t, tt.wantTxnID, result.TxnID)
				assert.False(t, result.SynthesizedID)
			}
		})
	}
}

func TestClassifier_SynthesizedID(t *testing.T) {
	c := New(DefaultPolicy([]string{"Rs 5"}))
	fixed := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return fixed }

	result := c.Classify(model.Notification{
		Body: "Rs 5 credited to your account",
	})

	require.True(t, result.Accepted)
	assert.True(t, result.SynthesizedID)
	assert.Equal(t, fmt.Sprintf("TXN%d", fixed.Unix()), result.TxnID)
}

func TestClassifier_Pure(t *testing.T) {
	// Same input, same policy, same result; no hidden state.
	c := New(DefaultPolicy([]string{"Rs 5"}))
	n := model.Notification{Body: "Rs 5 credited, Reference No: 777777"}

	first := c.Classify(n)
	second := c.Classify(n)

	assert.Equal(t, first, second)
}
