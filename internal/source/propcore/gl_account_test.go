package propcore

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResolveGLAccount(t *testing.T) {
	account, ok := ResolveGLAccount([]byte(`{"gl_account": "6200"}`))
	assert.True(t, ok)
	assert.Equal(t, "6200", account)

	// Numeric values are accepted and kept verbatim.
	account, ok = ResolveGLAccount([]byte(`{"accountNo": 6200}`))
	assert.True(t, ok)
	assert.Equal(t, "6200", account)

	// Aliases resolve in declaration order.
	account, ok = ResolveGLAccount([]byte(`{"account_number": "7100", "gl_account": "6200"}`))
	assert.True(t, ok)
	assert.Equal(t, "6200", account)

	account, ok = ResolveGLAccount([]byte(`{"glAccountNumber": "  6300  "}`))
	assert.True(t, ok)
	assert.Equal(t, "6300", account)

	// An empty value falls through to the next alias.
	account, ok = ResolveGLAccount([]byte(`{"gl_account": "", "account_number": "7100"}`))
	assert.True(t, ok)
	assert.Equal(t, "7100", account)

	_, ok = ResolveGLAccount([]byte(`{"amount": 10}`))
	assert.False(t, ok)

	_, ok = ResolveGLAccount([]byte(`not json`))
	assert.False(t, ok)
}
