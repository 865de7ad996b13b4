package lockmgr

import (
	"testing"

	"github.com/andreabadesso/hathor-wallet-service/modules"
)

func ts(v uint32) *modules.Timestamp {
	t := modules.Timestamp(v)
	return &t
}

func TestClassifyBlockAlwaysLocked(t *testing.T) {
	m := New()
	out := modules.TxOutput{Value: 6400, TokenID: "00", Decoded: modules.Decoded{Address: "address1"}}
	if !m.Classify(out, 100, true) {
		t.Fatal("expected block output to always classify as locked")
	}
}

func TestClassifyRegularTimelock(t *testing.T) {
	m := New()
	cases := []struct {
		name   string
		lock   *modules.Timestamp
		now    modules.Timestamp
		locked bool
	}{
		{"no timelock", nil, 100, false},
		{"future timelock", ts(200), 100, true},
		{"equal timelock releases immediately", ts(100), 100, false},
		{"past timelock", ts(50), 100, false},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			out := modules.TxOutput{Value: 10, TokenID: "00", Decoded: modules.Decoded{Address: "a", TimeLock: c.lock}}
			if got := m.Classify(out, c.now, false); got != c.locked {
				t.Errorf("got locked=%v, want %v", got, c.locked)
			}
		})
	}
}

func TestRelease(t *testing.T) {
	m := New()
	h := modules.Height(2)
	utxos := []modules.UTXO{
		{TxID: "tx1", Index: 0, TokenID: "00", Address: "address1", Value: 6400, HeightLock: &h},
	}
	deltas := m.Release(utxos)
	got := deltas["address1"]["00"]
	if got != 6400 {
		t.Fatalf("expected release delta of 6400, got %d", got)
	}
}
