package service

import (
	"fmt"
	"strings"
)

// IncompatibleError reports that the buyer and merchant share no acceptable
// arbitration agent. It carries both lists so the caller can surface them.
type IncompatibleError struct {
	BuyerAgents    []string
	MerchantAgents []string
}

func (e *IncompatibleError) Error() string {
	return fmt.Sprintf("no common arbitration agent (buyer accepts [%s], merchant accepts [%s])",
		strings.Join(e.BuyerAgents, ", "), strings.Join(e.MerchantAgents, ", "))
}

// MatchArbitrationAgents selects the arbitration agent both sides accept.
// URLs are compared case-insensitively and ignoring a trailing slash. An
// empty list means that side accepts any agent. When both sides constrain,
// the first of the buyer's agents also accepted by the merchant wins; the
// buyer's spelling of the URL is returned. Both sides unrestricted yields
// the empty string: the order proceeds without a pinned arbitration agent.
func MatchArbitrationAgents(buyerAgents, merchantAgents []string) (string, error) {
	switch {
	case len(buyerAgents) == 0 && len(merchantAgents) == 0:
		return "", nil
	case len(buyerAgents) == 0:
		return merchantAgents[0], nil
	case len(merchantAgents) == 0:
		return buyerAgents[0], nil
	}

	merchantSet := make(map[string]struct{}, len(merchantAgents))
	for _, m := range merchantAgents {
		merchantSet[normalizeAgentURL(m)] = struct{}{}
	}
	for _, b := range buyerAgents {
		if _, ok := merchantSet[normalizeAgentURL(b)]; ok {
			return b, nil
		}
	}
	return "", &IncompatibleError{BuyerAgents: buyerAgents, MerchantAgents: merchantAgents}
}

func normalizeAgentURL(u string) string {
	return strings.TrimRight(strings.ToLower(strings.TrimSpace(u)), "/")
}
