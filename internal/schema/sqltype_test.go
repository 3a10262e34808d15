package schema

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSQLTypeRoundTrip(t *testing.T) {
	cases := []struct {
		name string
		in   SQLType
		wire string
	}{
		{"bool", KnownType(TyBool), `{"KnownId":{"Ty":"Bool"}}`},
		{"json", KnownType(TyJSON), `{"KnownId":{"Ty":"Json"}}`},
		{"timestamp", KnownType(TyTimestamp), `{"KnownId":{"Ty":"Timestamp"}}`},
		{"custom", CustomType("money"), `{"Custom":{"Name":"money"}}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			data, err := json.Marshal(tc.in)
			require.NoError(t, err)
			assert.JSONEq(t, tc.wire, string(data))

			var out SQLType
			require.NoError(t, json.Unmarshal(data, &out))
			assert.Equal(t, tc.in, out)
		})
	}
}

func TestSQLTypeUnknownTag(t *testing.T) {
	var out SQLType
	err := json.Unmarshal([]byte(`{"KnownId":{"Ty":"Decimal"}}`), &out)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Decimal")
}

func TestSQLTypeRejectsAmbiguous(t *testing.T) {
	var out SQLType
	err := json.Unmarshal([]byte(`{"KnownId":{"Ty":"Int"},"Custom":{"Name":"x"}}`), &out)
	require.Error(t, err)

	err = json.Unmarshal([]byte(`{}`), &out)
	require.Error(t, err)
}

func TestSQLTypeEmptyCustomName(t *testing.T) {
	var out SQLType
	err := json.Unmarshal([]byte(`{"Custom":{"Name":""}}`), &out)
	require.Error(t, err)
}
