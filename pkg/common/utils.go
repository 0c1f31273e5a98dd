package common

import (
	"math/rand"
	"time"
)

const receiptChars = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// GenerateReceiptNo returns a settlement payment receipt number such as
// "STL-202403-7QX2K9A", stamped with the month the payment was made.
func GenerateReceiptNo(paidAt time.Time) string {
	r := rand.New(rand.NewSource(time.Now().UnixNano()))

	code := make([]byte, 7)
	for i := range code {
		code[i] = receiptChars[r.Intn(len(receiptChars))]
	}
	return "STL-" + paidAt.Format("200601") + "-" + string(code)
}
