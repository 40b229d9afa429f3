package options

// KeyRange bounds a scan by primary key, both ends inclusive.
// A nil bound leaves that side open.
type KeyRange struct {
	Lower, Upper interface{}
}

type Order string

const (
	Ascend  Order = "ASC"
	Descend Order = "DESC"
)

type FindOptions struct {
	O     Order
	KR    *KeyRange
	Limit int
}

func (fo *FindOptions) SetOrder(o Order) *FindOptions {
	fo.O = o
	return fo
}

func (fo *FindOptions) KeyRange(lower, upper interface{}) *FindOptions {
	fo.KR = &KeyRange{Lower: lower, Upper: upper}
	return fo
}

func (fo *FindOptions) SetLimit(n int) *FindOptions {
	fo.Limit = n
	return fo
}

func Find() *FindOptions {
	return &FindOptions{O: Ascend}
}
