package model

import "time"

// Policy is a free-text rule that biases the classifier's reasoning for a
// domain, or for every domain when attached to the global scope.
type Policy struct {
	CreatedAt time.Time `json:"created_at"`
	ID        string    `json:"id"`
	Domain    Domain    `json:"domain"`
	Text      string    `json:"text"`
}

// PolicyDomains lists the scopes a policy may be attached to.
var PolicyDomains = append([]Domain{DomainGlobal}, Domains...)

// ValidPolicyDomain reports whether d may hold policies.
func ValidPolicyDomain(d Domain) bool {
	return d == DomainGlobal || d.Valid()
}
