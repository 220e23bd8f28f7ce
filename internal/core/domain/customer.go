package domain

import (
	"fmt"
	"strings"
)

// CustomerInfo is the delivery contact attached to an order. It is built once
// through NewCustomerInfo and never mutated afterwards.
type CustomerInfo struct {
	fullName string
	email    string
	phone    string
	address  string
}

func NewCustomerInfo(fullName, email, phone, address string) (*CustomerInfo, error) {
	c := CustomerInfo{
		fullName: strings.TrimSpace(fullName),
		email:    strings.TrimSpace(email),
		phone:    strings.TrimSpace(phone),
		address:  strings.TrimSpace(address),
	}

	if c.fullName == "" {
		return nil, fmt.Errorf("%w: customer name is required", ErrBadRequest)
	}
	if c.address == "" {
		return nil, fmt.Errorf("%w: customer address is required", ErrBadRequest)
	}
	if c.email == "" && c.phone == "" {
		return nil, fmt.Errorf("%w: customer email or phone is required", ErrBadRequest)
	}

	return &c, nil
}

func (c *CustomerInfo) FullName() string { return c.fullName }
func (c *CustomerInfo) Email() string    { return c.email }
func (c *CustomerInfo) Phone() string    { return c.phone }
func (c *CustomerInfo) Address() string  { return c.address }
