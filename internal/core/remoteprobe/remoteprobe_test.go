package remoteprobe

import (
	"testing"

	"github.com/gosnmp/gosnmp"
	"github.com/stretchr/testify/assert"
)

func TestSessionKeyIsPerIPAndCommunity(t *testing.T) {
	assert.Equal(t, "10.0.0.1|public", sessionKey("10.0.0.1", "public"))
	assert.NotEqual(t, sessionKey("10.0.0.1", "public"), sessionKey("10.0.0.1", "private"))
}

func TestFirstNonEmpty(t *testing.T) {
	assert.Equal(t, "a", firstNonEmpty("a", "b"))
	assert.Equal(t, "b", firstNonEmpty("", "b"))
	assert.Equal(t, "", firstNonEmpty("", ""))
}

func TestIfStatusString(t *testing.T) {
	assert.Equal(t, "up", ifStatusString(1))
	assert.Equal(t, "down", ifStatusString(2))
	assert.Equal(t, "testing", ifStatusString(3))
}

func TestSplitTableOid(t *testing.T) {
	idx, col, ok := splitTableOid(".1.3.6.1.2.1.2.2.1.2.5", "1.3.6.1.2.1.2.2.1")
	assert.True(t, ok)
	assert.Equal(t, 2, col)
	assert.Equal(t, "5", idx)
}

func TestSplitTableOidRejectsOtherRoots(t *testing.T) {
	_, _, ok := splitTableOid(".1.3.6.1.2.1.25.1.1.0", "1.3.6.1.2.1.2.2.1")
	assert.False(t, ok)
}

func TestRoundHalfUp(t *testing.T) {
	assert.Equal(t, float64(1), roundHalfUp(0.5))
	assert.Equal(t, float64(3), roundHalfUp(2.5))
}

func TestPduUintNilValue(t *testing.T) {
	pdu := gosnmp.SnmpPDU{Value: nil}
	assert.Equal(t, uint64(0), pduUint(pdu))
}

func TestPduStringVariants(t *testing.T) {
	assert.Equal(t, "hello", pduString(gosnmp.SnmpPDU{Value: []byte("hello")}))
	assert.Equal(t, "world", pduString(gosnmp.SnmpPDU{Value: "world"}))
}
