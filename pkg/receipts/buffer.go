// Package receipts renders accepted journal entries as CSV.
package receipts

import (
	"bytes"
	"encoding/csv"
	"strconv"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
)

type Buffer struct {
	buf bytes.Buffer
	csv *csv.Writer
}

// Emit adds a row. amount is in ONION.
func (b *Buffer) Emit(seq int64, kind string, from, to common.Address, amount decimal.Decimal) {
	b.init()
	b.write(strconv.FormatInt(seq, 10), kind, from.String(), to.String(), amount.String())
}

func (b *Buffer) Finalize() []byte {
	b.init()
	b.csv.Flush()
	return b.buf.Bytes()
}

func (b *Buffer) init() {
	if b.csv == nil {
		b.csv = csv.NewWriter(&b.buf)
		b.write("seq", "kind", "from", "to", "amount")
	}
}

func (b *Buffer) write(cols ...string) {
	_ = b.csv.Write(cols)
}
