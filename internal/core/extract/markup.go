package extract

import (
	"strings"

	"golang.org/x/net/html"

	"github.com/rl1809/invsnap/internal/core/domain"
)

const (
	itemOpen  = "<ITEM>"
	itemClose = "</ITEM>"
)

// ParseStoreInventory appends every non-stockroom <ITEM> block of body to inv.
// It returns false only for an empty body. A block without its closing tag
// ends the scan and whatever trails it is dropped.
func ParseStoreInventory(body []byte, inv *domain.Inventory) bool {
	if len(body) == 0 {
		return false
	}
	buf := string(body)

	pos := 0
	for {
		i := strings.Index(buf[pos:], itemOpen)
		if i < 0 {
			break
		}
		start, n, ok := FindSpan(buf, pos+i+len(itemOpen), itemClose)
		if !ok {
			break
		}
		block := buf[start : start+n]
		pos = start + n + len(itemClose)

		if isAffirmative(Lookup(block, "STOCKROOM")) {
			continue
		}
		item := parseItem(block)
		item.Normalize()
		inv.Add(item)
	}
	return true
}

func parseItem(block string) domain.Item {
	return domain.Item{
		ID:         Lookup(block, "ITEMID").String(),
		TypeID:     Lookup(block, "ITEMTYPE").Char(),
		ColorID:    Lookup(block, "COLOR").Int(),
		CategoryID: Lookup(block, "CATEGORY").Int(),
		Quantity:   Lookup(block, "QTY").Int(),
		Price:      Lookup(block, "PRICE").Float(),
		Bulk:       Lookup(block, "BULK").Int(),
		LotID:      Lookup(block, "LOTID").Int64(),
		MyCost:     Lookup(block, "MYCOST").Float(),
		Condition:  Lookup(block, "CONDITION").Char(),
		Comments:   decodeText(Lookup(block, "DESCRIPTION")),
		Remarks:    decodeText(Lookup(block, "REMARKS")),
	}
}

func decodeText(f Field) string {
	if f.Raw == "" {
		return ""
	}
	return html.UnescapeString(f.Raw)
}

func isAffirmative(f Field) bool {
	switch f.Char() {
	case 'Y', 'y', 'T', 't', '1':
		return true
	}
	return false
}
