// Package batch loads the batch transfer CSV file
package batch

import (
	"bytes"
	"encoding/csv"
	"errors"
	"io"
	"math/big"
	"os"
	"sort"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/zeebo/errs"

	oniontoken "storj.io/onion-token/pkg"
	"storj.io/onion-token/pkg/units"
)

var (
	amountHeaders = []string{"amount", "amnt"}
)

type Row struct {
	// Line number in the CSV file
	Line int

	// Address is the recipient of the transfer
	Address common.Address

	// Amount is the transfer amount in base units
	Amount *big.Int
}

func Load(path string) ([]Row, error) {
	csvBytes, err := os.ReadFile(path)
	if err != nil {
		return nil, errs.Wrap(err)
	}
	return Parse(csvBytes)
}

// Parse parses "addr,amount" rows. Amounts accept the onion, gwei and wei
// suffixes; a bare number is a whole or fractional ONION amount.
func Parse(csvBytes []byte) ([]Row, error) {
	r := csv.NewReader(bytes.NewReader(csvBytes))
	r.FieldsPerRecord = -1
	r.Comment = '#'
	r.TrimLeadingSpace = true

	inHeader := true
	var rows []Row
	for {
		record, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, errs.Wrap(err)
		}
		// the reader skips blank and comment lines, so ask it where the
		// record starts
		line, _ := r.FieldPos(0)
		switch {
		// skip empty lines and comments
		case record[0] == "", record[0][0] == '#':
			continue
		case len(record) != 2:
			return nil, errs.New("record on line %d: wrong number of fields", line)
		}

		// first non-empty, non-comment line must be the header
		if inHeader {
			if record[0] != "addr" || !stringInSet(record[1], amountHeaders) {
				return nil, errs.New("record on line %d: invalid header %q; expected \"addr,amount\"", line, strings.Join(record, ","))
			}
			inHeader = false
			continue
		}

		address, err := oniontoken.AddressFromString(record[0])
		if err != nil {
			return nil, errs.New("record on line %d: invalid ETH address %q", line, record[0])
		}

		amount, err := parseAmount(record[1])
		if err != nil {
			return nil, errs.New("record on line %d: invalid amount %q: %v", line, record[1], err)
		}

		rows = append(rows, Row{
			Line:    line,
			Address: address,
			Amount:  amount,
		})
	}

	return rows, nil
}

func parseAmount(s string) (*big.Int, error) {
	if s != "" && s[len(s)-1] >= '0' && s[len(s)-1] <= '9' {
		s += "onion"
	}
	amount, err := units.ParseAmount(s)
	if err != nil {
		return nil, err
	}
	if amount.IsZero() {
		return nil, errs.New("must be a positive value")
	}
	return amount.WEIInt(), nil
}

// Total sums the amounts of rows.
func Total(rows []Row) *big.Int {
	total := new(big.Int)
	for _, row := range rows {
		total.Add(total, row.Amount)
	}
	return total
}

// SortRows orders rows by address, then by amount.
func SortRows(rows []Row) {
	sort.Slice(rows, func(i, j int) bool {
		cmp := bytes.Compare(rows[i].Address[:], rows[j].Address[:])
		if cmp < 0 {
			return true
		}
		if cmp > 0 {
			return false
		}

		return rows[i].Amount.Cmp(rows[j].Amount) < 0
	})
}

func stringInSet(s string, ss []string) bool {
	for _, x := range ss {
		if s == x {
			return true
		}
	}
	return false
}
