package propcore

import (
	"encoding/json"
	"strings"
)

// GLAccountAliases lists the key names under which PropCore accounts report
// the GL account number on an expense record, in resolution order.
var GLAccountAliases = []string{
	"gl_account",
	"glAccountNumber",
	"account_number",
	"accountNo",
}

// ResolveGLAccount extracts the GL account number from a raw expense record,
// accepting string and numeric values. It returns false when none of the
// aliases yields a non-empty value.
func ResolveGLAccount(raw json.RawMessage) (string, bool) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return "", false
	}

	for _, alias := range GLAccountAliases {
		value, ok := fields[alias]
		if !ok {
			continue
		}

		var asString string
		if err := json.Unmarshal(value, &asString); err == nil {
			if asString = strings.TrimSpace(asString); asString != "" {
				return asString, true
			}
			continue
		}

		var asNumber json.Number
		if err := json.Unmarshal(value, &asNumber); err == nil && asNumber.String() != "" {
			return asNumber.String(), true
		}
	}

	return "", false
}
