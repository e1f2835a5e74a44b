// Package liability maps a return type to the party responsible for it.
// The result is advisory: reviewers may override it at approval time, but the
// default and its reason are stored for the audit trail.
package liability

import "cargopay/internal/domain"

type ruling struct {
	party  domain.LiableParty
	reason string
}

var rulings = map[domain.ReturnType]ruling{
	domain.ReturnProhibitedItem:   {domain.LiableCustomer, "customer shipped a prohibited item"},
	domain.ReturnNotArrivedErlian: {domain.LiableIntlCarrier, "package never reached the Erlian hub"},
	domain.ReturnDamagedAtErlian:  {domain.LiableIntlCarrier, "damage recorded on arrival at the Erlian hub"},
	domain.ReturnDamagedInTransit: {domain.LiableCargoTransit, "damage occurred on the Erlian-UB transit leg"},
	domain.ReturnLostInTransit:    {domain.LiableCargoTransit, "package lost on the Erlian-UB transit leg"},
	domain.ReturnNotArrivedUB:     {domain.LiableCargoTransit, "package never reached Ulaanbaatar"},
	domain.ReturnDamagedAtUB:      {domain.LiableCargoMongolia, "damage recorded at the Ulaanbaatar warehouse"},
	domain.ReturnWrongDelivery:    {domain.LiableCargoMongolia, "package delivered to the wrong recipient"},
	domain.ReturnWrongItem:        {domain.LiableSeller, "seller shipped the wrong item"},
	domain.ReturnQualityIssue:     {domain.LiableSeller, "item quality does not match the listing"},
}

// Classify returns the default liable party and an auditable reason for the
// given return type. Unmapped types fall through to UNDETERMINED, which
// requires manual review.
func Classify(t domain.ReturnType) (domain.LiableParty, string) {
	if r, ok := rulings[t]; ok {
		return r.party, r.reason
	}
	return domain.LiableUndetermined, "no default ruling for this return type, manual review required"
}
