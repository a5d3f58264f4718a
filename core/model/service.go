package model

import "fmt"

// Service identifies a market product a unit can be dispatched for.
type Service string

const (
	Energy    Service = "energy"
	RaiseReg  Service = "raise_reg"
	LowerReg  Service = "lower_reg"
	Raise1s   Service = "raise_1s"
	Raise6s   Service = "raise_6s"
	Raise60s  Service = "raise_60s"
	Raise5min Service = "raise_5min"
	Lower1s   Service = "lower_1s"
	Lower6s   Service = "lower_6s"
	Lower60s  Service = "lower_60s"
	Lower5min Service = "lower_5min"
)

var services = map[Service]struct{ fcas, regulation, raise bool }{
	Energy:    {},
	RaiseReg:  {fcas: true, regulation: true, raise: true},
	LowerReg:  {fcas: true, regulation: true},
	Raise1s:   {fcas: true, raise: true},
	Raise6s:   {fcas: true, raise: true},
	Raise60s:  {fcas: true, raise: true},
	Raise5min: {fcas: true, raise: true},
	Lower1s:   {fcas: true},
	Lower6s:   {fcas: true},
	Lower60s:  {fcas: true},
	Lower5min: {fcas: true},
}

// ParseService converts s into a Service, rejecting unknown names.
func ParseService(s string) (Service, error) {
	svc := Service(s)
	if _, ok := services[svc]; !ok {
		return "", fmt.Errorf("unknown service %q", s)
	}
	return svc, nil
}

// Valid reports whether s is a known service.
func (s Service) Valid() bool {
	_, ok := services[s]
	return ok
}

// IsFCAS reports whether s is a frequency control ancillary service.
func (s Service) IsFCAS() bool { return services[s].fcas }

// IsRegulation reports whether s is raise_reg or lower_reg.
func (s Service) IsRegulation() bool { return services[s].regulation }

// IsContingency reports whether s is an FCAS service other than regulation.
func (s Service) IsContingency() bool { return s.IsFCAS() && !s.IsRegulation() }

// IsRaise reports whether s raises frequency (supply increase or load decrease).
func (s Service) IsRaise() bool { return services[s].raise }

// Regulation returns the regulation service in the same direction as s.
func (s Service) Regulation() Service {
	if s.IsRaise() {
		return RaiseReg
	}
	return LowerReg
}

func (s Service) String() string { return string(s) }
