package colony

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"hash"
	"math"
	"sort"
)

func (c *Colony) stateDigest(nowTick uint64) string {
	h := sha256.New()
	var tmp [8]byte

	writeU64(h, &tmp, nowTick)
	writeU64(h, &tmp, uint64(c.cfg.Seed))
	writeF64(h, &tmp, c.now)
	writeU64(h, &tmp, c.taskSeq.Load())

	for i, col := range c.colonists {
		r := col.Record()
		writeString(h, r.ID)
		writeF64(h, &tmp, r.Spot.X)
		writeF64(h, &tmp, r.Spot.Y)
		writeString(h, string(r.Spot.Loc))
		writeF64(h, &tmp, r.Energy)
		writeF64(h, &tmp, r.Health)
		writeF64(h, &tmp, r.Stress)
		for _, s := range r.Skills {
			writeString(h, string(s.Skill))
			writeU64(h, &tmp, uint64(s.Level))
			writeF64(h, &tmp, s.Experience)
		}
		if r.Suit != nil {
			writeF64(h, &tmp, r.Suit.Oxygen)
			writeF64(h, &tmp, r.Suit.Water)
			writeF64(h, &tmp, r.Suit.Wear)
			for _, m := range r.Suit.Malfunction {
				writeString(h, m)
			}
		}
		if t := c.scheds[i].Current(); t != nil {
			a := t.Active()
			writeString(h, t.ID())
			writeString(h, a.Kind())
			writeString(h, string(a.Phase()))
			writeF64(h, &tmp, t.TimeCompleted())
		} else {
			writeString(h, "")
		}
	}

	for _, st := range c.stations.All() {
		writeString(h, st.ID())
		writeU64(h, &tmp, uint64(st.Occupants()))
		writeU64(h, &tmp, uint64(st.Malfunctions()))
		if st.Broken() {
			h.Write([]byte{1})
		} else {
			h.Write([]byte{0})
		}
	}

	keys := make([]string, 0, len(c.resources))
	for k := range c.resources {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		writeString(h, k)
		writeF64(h, &tmp, c.resources[k])
	}

	keys = keys[:0]
	for k := range c.repairs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		writeString(h, k)
		writeString(h, c.repairs[k])
	}

	return hex.EncodeToString(h.Sum(nil))
}

func writeU64(h hash.Hash, tmp *[8]byte, v uint64) {
	binary.LittleEndian.PutUint64(tmp[:], v)
	h.Write(tmp[:])
}

func writeF64(h hash.Hash, tmp *[8]byte, v float64) {
	writeU64(h, tmp, math.Float64bits(v))
}

func writeString(h hash.Hash, s string) {
	h.Write([]byte(s))
	h.Write([]byte{0})
}
