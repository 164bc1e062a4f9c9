package storage

import "github.com/rl1809/invsnap/internal/core/domain"

// Item codes are single bytes; 0 means unset and is stored as an empty string.
func codeString(b byte) string {
	if b == 0 {
		return ""
	}
	return string([]byte{b})
}

func codeByte(s string) byte {
	if s == "" {
		return 0
	}
	return s[0]
}

// itemRow flattens one lot in column order of the snapshot_items table.
func itemRow(snapshotID string, seq int, it domain.Item) []any {
	return []any{
		snapshotID, seq, it.ID, codeString(it.TypeID), it.ColorID, it.CategoryID,
		it.Quantity, it.Price, it.Bulk, it.LotID, it.MyCost, codeString(it.Condition),
		it.Comments, it.Remarks,
	}
}

var itemColumns = []string{
	"snapshot_id", "seq", "item_id", "type_id", "color_id", "category_id",
	"quantity", "price", "bulk", "lot_id", "my_cost", "condition_code",
	"comments", "remarks",
}
