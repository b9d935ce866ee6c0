package ir

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func posInf() float64 { return math.Inf(1) }

func TestRecordFromObjectSplitsReservedKeys(t *testing.T) {
	obj := IRObject{
		KeyClassName:    IRString("Acu"),
		KeyOID:          IRString("test:acu-1"),
		"assembly":      IRString("test:bus"),
		"quantity":      IRInt(2),
		KeyParameters:   IRObject{"m": IRObject{"value": IRFloat(1)}},
		KeyDataElements: IRNull{},
	}

	rec, err := RecordFromObject(obj)
	require.NoError(t, err)
	assert.Equal(t, "Acu", rec.ClassName)
	assert.Equal(t, "test:acu-1", rec.OID)
	assert.Equal(t, "test:bus", rec.String("assembly"))
	assert.Equal(t, IRInt(2), rec.Get("quantity"))
	assert.NotNil(t, rec.Parameters)
	assert.Nil(t, rec.DataElements, "null sidecar is treated as absent")
	assert.NotContains(t, rec.Fields, KeyClassName)
	assert.NotContains(t, rec.Fields, KeyOID)
}

func TestRecordFromObjectRejectsBadSidecar(t *testing.T) {
	_, err := RecordFromObject(IRObject{
		KeyOID:        IRString("x"),
		KeyParameters: IRString("nope"),
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parameters must be an object")
}

func TestRecordJSONRoundTrip(t *testing.T) {
	rec := Record{
		ClassName:    "HardwareProduct",
		OID:          "test:panel",
		Fields:       IRObject{"name": IRString("Panel")},
		DataElements: IRObject{"vendor": IRObject{"value": IRString("ACME")}},
	}

	data, err := json.Marshal(rec)
	require.NoError(t, err)
	assert.JSONEq(t, `{"_cname":"HardwareProduct","oid":"test:panel","name":"Panel","data_elements":{"vendor":{"value":"ACME"}}}`, string(data))

	var back Record
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, rec, back)
}

func TestRecordSetDeleteClone(t *testing.T) {
	var rec Record
	rec.Set("name", IRString("A"))
	assert.Equal(t, "A", rec.String("name"))
	assert.Equal(t, "", rec.String("missing"))

	cp := rec.Clone()
	cp.Set("name", IRString("B"))
	assert.Equal(t, "A", rec.String("name"), "clone must not alias fields")

	rec.Delete("name")
	assert.Nil(t, rec.Get("name"))
}
