package utils

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// PaymentReferencePrefix marks internally generated payment references,
// distinguishing them from the gateway's own identifiers.
const PaymentReferencePrefix = "PAY"

// GeneratePaymentReference returns a new unique payment reference. The
// suffix is a v4 UUID (122 random bits), so collisions are negligible at
// any realistic payment volume.
func GeneratePaymentReference() string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")
	return fmt.Sprintf("%s-%s", PaymentReferencePrefix, suffix)
}
