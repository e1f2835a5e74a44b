package liability

import (
	"testing"

	"cargopay/internal/domain"

	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		returnType domain.ReturnType
		want       domain.LiableParty
	}{
		{domain.ReturnProhibitedItem, domain.LiableCustomer},
		{domain.ReturnNotArrivedErlian, domain.LiableIntlCarrier},
		{domain.ReturnDamagedAtErlian, domain.LiableIntlCarrier},
		{domain.ReturnDamagedInTransit, domain.LiableCargoTransit},
		{domain.ReturnLostInTransit, domain.LiableCargoTransit},
		{domain.ReturnNotArrivedUB, domain.LiableCargoTransit},
		{domain.ReturnDamagedAtUB, domain.LiableCargoMongolia},
		{domain.ReturnWrongDelivery, domain.LiableCargoMongolia},
		{domain.ReturnWrongItem, domain.LiableSeller},
		{domain.ReturnQualityIssue, domain.LiableSeller},
	}

	for _, tt := range tests {
		t.Run(string(tt.returnType), func(t *testing.T) {
			party, reason := Classify(tt.returnType)
			assert.Equal(t, tt.want, party)
			assert.NotEmpty(t, reason)
		})
	}
}

func TestClassify_Unmapped(t *testing.T) {
	party, reason := Classify(domain.ReturnType("SOMETHING_NEW"))
	assert.Equal(t, domain.LiableUndetermined, party)
	assert.Contains(t, reason, "manual review")
}
