package edusiap

import (
	"encoding/json"

	"github.com/pkg/errors"
	btr "github.com/tidwall/btree"
	"github.com/tidwall/gjson"
)

// indexValue is a value that can be stored in a secondary index.
// Numbers sort before strings. Fields that are missing or hold
// anything else are not indexed.
type indexValue struct {
	num   float64
	str   string
	isStr bool
}

func (iv indexValue) less(other indexValue) bool {
	if iv.isStr != other.isStr {
		return !iv.isStr
	}

	if iv.isStr {
		return iv.str < other.str
	}

	return iv.num < other.num
}

func (iv indexValue) equal(other indexValue) bool {
	return iv.isStr == other.isStr && iv.num == other.num && iv.str == other.str
}

func indexValueOf(v interface{}) (indexValue, error) {
	switch typed := v.(type) {
	case string:
		return indexValue{str: typed, isStr: true}, nil
	case float64:
		return indexValue{num: typed}, nil
	case float32:
		return indexValue{num: float64(typed)}, nil
	case json.Number:
		f, err := typed.Float64()
		if err != nil {
			return indexValue{}, errors.Wrapf(ErrInvalidKey, "%s is not a number", typed.String())
		}
		return indexValue{num: f}, nil
	case Key:
		if typed.isStr {
			return indexValue{str: typed.str, isStr: true}, nil
		}
		return indexValue{num: float64(typed.num)}, nil
	}

	if n, ok := asInt(v); ok {
		return indexValue{num: float64(n)}, nil
	}

	if k, err := KeyOf(v); err == nil {
		return indexValueOf(k)
	}

	return indexValue{}, errors.Wrapf(ErrInvalidKey, "type %T cannot be used as an index value", v)
}

// extractIndexValue reads the indexed field out of a raw record.
func extractIndexValue(raw []byte, keyPath string) (indexValue, bool) {
	res := gjson.GetBytes(raw, escapePath(keyPath))
	switch res.Type {
	case gjson.String:
		return indexValue{str: res.Str, isStr: true}, true
	case gjson.Number:
		return indexValue{num: res.Num}, true
	}

	return indexValue{}, false
}

type indexItem struct {
	value indexValue
	pk    Key
}

func byIndexItems(a, b interface{}) bool {
	i1, i2 := a.(*indexItem), b.(*indexItem)
	if !i1.value.equal(i2.value) {
		return i1.value.less(i2.value)
	}
	return i1.pk.Less(i2.pk)
}

type index struct {
	desc IndexDescriptor
	btr  *btr.BTree
}

func newIndex(desc IndexDescriptor) *index {
	return &index{
		desc: desc,
		btr:  btr.NewNonConcurrent(byIndexItems),
	}
}

func (idx *index) add(ent *entry) {
	v, ok := extractIndexValue(ent.value, idx.desc.KeyPath)
	if !ok {
		return
	}

	idx.btr.Set(&indexItem{value: v, pk: ent.key})
}

func (idx *index) remove(ent *entry) {
	v, ok := extractIndexValue(ent.value, idx.desc.KeyPath)
	if !ok {
		return
	}

	idx.btr.Delete(&indexItem{value: v, pk: ent.key})
}

// keysEqualTo iterates primary keys whose indexed value equals v.
func (idx *index) keysEqualTo(v indexValue, iter func(pk Key) bool) {
	idx.btr.Ascend(&indexItem{value: v, pk: minKey}, func(i interface{}) bool {
		item := i.(*indexItem)
		if !item.value.equal(v) {
			return false
		}
		return iter(item.pk)
	})
}

// conflict reports the key of another record already holding ent's value
// when the index is unique.
func (idx *index) conflict(ent *entry) (Key, bool) {
	if !idx.desc.Unique {
		return Key{}, false
	}

	v, ok := extractIndexValue(ent.value, idx.desc.KeyPath)
	if !ok {
		return Key{}, false
	}

	var found Key
	var collides bool
	idx.keysEqualTo(v, func(pk Key) bool {
		if pk.Equal(ent.key) {
			return true
		}
		found, collides = pk, true
		return false
	})

	return found, collides
}

func (idx *index) len() int {
	return idx.btr.Len()
}

func formatIndexValue(v indexValue) string {
	if v.isStr {
		return v.str
	}
	b, _ := json.Marshal(v.num)
	return string(b)
}
