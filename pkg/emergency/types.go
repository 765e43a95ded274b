// Package emergency defines the domain taxonomy for the authorization
// pipeline: emergency categories, operation types, severity grading and the
// approval policy that maps escalation levels to guardian co-signatures.
package emergency

import (
	"fmt"
	"math/big"
	"time"
)

// Type categorizes an emergency. The numeric values are the ones committed
// inside declaration proofs, so they are stable across releases.
type Type int

const (
	// TypeMedical covers health emergencies requiring treatment funding.
	TypeMedical Type = 1
	// TypeFinancial covers account compromise and asset protection.
	TypeFinancial Type = 2
	// TypeSecurity covers physical or digital security incidents.
	TypeSecurity Type = 3
	// TypeAccident covers accidents with immediate material consequences.
	TypeAccident Type = 4
	// TypeFamily covers emergencies affecting registered dependents.
	TypeFamily Type = 5
)

// String returns a human-readable name for the emergency type.
func (t Type) String() string {
	switch t {
	case TypeMedical:
		return "Medical"
	case TypeFinancial:
		return "Financial"
	case TypeSecurity:
		return "Security"
	case TypeAccident:
		return "Accident"
	case TypeFamily:
		return "Family"
	default:
		return fmt.Sprintf("Unknown(%d)", int(t))
	}
}

// IsValid returns true if the type is a known emergency category.
func (t Type) IsValid() bool {
	return t >= TypeMedical && t <= TypeFamily
}

// Operation identifies an action a guardian can authorize during an emergency.
// The numeric values are committed inside authorization proofs.
type Operation int

const (
	// OpMedicalTreatment releases funds to a medical provider.
	OpMedicalTreatment Operation = 1
	// OpFinancialProtection locks assets against an ongoing compromise.
	OpFinancialProtection Operation = 2
	// OpSecurityResponse engages a security response retainer.
	OpSecurityResponse Operation = 3
	// OpInsuranceClaim files and funds an insurance claim.
	OpInsuranceClaim Operation = 4
	// OpFamilyAssistance releases funds to a registered dependent.
	OpFamilyAssistance Operation = 5
	// OpLegalSupport retains legal counsel.
	OpLegalSupport Operation = 6
	// OpGeneralEmergency is the catch-all operation for uncategorized needs.
	OpGeneralEmergency Operation = 7
	// OpFundsTransfer moves value to an arbitrary target address.
	OpFundsTransfer Operation = 8
	// OpAccountFreeze suspends all outgoing operations on the account.
	OpAccountFreeze Operation = 9
	// OpAccessGrant delegates account access to a recovery contact.
	OpAccessGrant Operation = 10
)

// String returns a human-readable name for the operation.
func (o Operation) String() string {
	switch o {
	case OpMedicalTreatment:
		return "MedicalTreatment"
	case OpFinancialProtection:
		return "FinancialProtection"
	case OpSecurityResponse:
		return "SecurityResponse"
	case OpInsuranceClaim:
		return "InsuranceClaim"
	case OpFamilyAssistance:
		return "FamilyAssistance"
	case OpLegalSupport:
		return "LegalSupport"
	case OpGeneralEmergency:
		return "GeneralEmergency"
	case OpFundsTransfer:
		return "FundsTransfer"
	case OpAccountFreeze:
		return "AccountFreeze"
	case OpAccessGrant:
		return "AccessGrant"
	default:
		return fmt.Sprintf("Unknown(%d)", int(o))
	}
}

// IsValid returns true if the operation is a known type.
func (o Operation) IsValid() bool {
	return o >= OpMedicalTreatment && o <= OpAccessGrant
}

// OperationForType returns the default operation unlocked by an emergency
// category. Unknown categories fall back to the general emergency operation.
func OperationForType(t Type) Operation {
	switch t {
	case TypeMedical:
		return OpMedicalTreatment
	case TypeFinancial:
		return OpFinancialProtection
	case TypeSecurity:
		return OpSecurityResponse
	case TypeAccident:
		return OpInsuranceClaim
	case TypeFamily:
		return OpFamilyAssistance
	default:
		return OpGeneralEmergency
	}
}

// Record is an immutable snapshot of a declared emergency. Once declared, an
// emergency is referenced everywhere by its hash; the private fields behind
// the commitments never appear here.
type Record struct {
	// Hash is the public emergency hash identity proofs bind to.
	Hash *big.Int

	// Commitment hides type, timestamp, secret, nonce and severity.
	Commitment *big.Int

	// SeverityCommitment hides the severity for later escalation review.
	SeverityCommitment *big.Int

	// UserAddress is the declaring user's public address.
	UserAddress *big.Int

	// DeclaredAt is when the keeper accepted the declaration.
	DeclaredAt time.Time

	// Level is the escalation level assigned at acceptance.
	Level Level
}
