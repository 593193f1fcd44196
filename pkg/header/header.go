// Package header decodes the ONIX message header.
package header

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/ajitpratap0/onix/pkg/errors"
	"github.com/ajitpratap0/onix/pkg/feed"
	"github.com/ajitpratap0/onix/pkg/record"
	"github.com/ajitpratap0/onix/pkg/xmltree"
)

// Header is the sender information of an ONIX message.
type Header struct {
	FromCompany      string `json:"from_company,omitempty"`
	FromPerson       string `json:"from_person,omitempty"`
	FromEmail        string `json:"from_email,omitempty"`
	ToCompany        string `json:"to_company,omitempty"`
	SentDate         string `json:"sent_date,omitempty"`
	MessageNote      string `json:"message_note,omitempty"`
	DefaultLanguage  string `json:"default_language,omitempty"`
	DefaultPriceType string `json:"default_price_type,omitempty"`
	DefaultCurrency  string `json:"default_currency,omitempty"`
}

// Parse extracts a Header from a decoded <Header> element. ONIX 2.1
// reference tags are read first, with the ONIX 3.0 Sender/Addressee
// composites as fallback.
func Parse(node *xmltree.Node) Header {
	return Header{
		FromCompany:      node.FirstText("FromCompany", "Sender/SenderName"),
		FromPerson:       node.FirstText("FromPerson", "Sender/ContactName"),
		FromEmail:        node.FirstText("FromEmail", "Sender/EmailAddress"),
		ToCompany:        node.FirstText("ToCompany", "Addressee/AddresseeName"),
		SentDate:         node.FirstText("SentDate", "SentDateTime"),
		MessageNote:      node.FirstText("MessageNote"),
		DefaultLanguage:  node.FirstText("DefaultLanguageOfText"),
		DefaultPriceType: node.FirstText("DefaultPriceTypeCode"),
		DefaultCurrency:  node.FirstText("DefaultCurrencyCode"),
	}
}

// Consumer decodes the Header notification and keeps the result.
type Consumer struct {
	decoder record.Decoder
	logger  *zap.Logger

	mu     sync.Mutex
	header *Header
}

// NewConsumer creates a Consumer. A nil decoder selects xmltree.
func NewConsumer(decoder record.Decoder, logger *zap.Logger) *Consumer {
	if decoder == nil {
		decoder = xmltree.Decoder{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Consumer{
		decoder: decoder,
		logger:  logger.With(zap.String("component", "header_consumer")),
	}
}

// Update implements feed.Consumer.
func (c *Consumer) Update(_ context.Context, n feed.Notification) error {
	if n.Tag != feed.TagHeader {
		return nil
	}

	node, err := c.decoder.Decode(n.Fragment)
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeDecode, "failed to decode header fragment")
	}
	h := Parse(node)

	c.mu.Lock()
	c.header = &h
	c.mu.Unlock()

	c.logger.Info("feed header",
		zap.String("from_company", h.FromCompany),
		zap.String("from_person", h.FromPerson),
		zap.String("to_company", h.ToCompany),
		zap.String("sent_date", h.SentDate),
		zap.String("default_language", h.DefaultLanguage),
		zap.String("default_currency", h.DefaultCurrency))
	return nil
}

// Header returns the last decoded header.
func (c *Consumer) Header() (Header, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.header == nil {
		return Header{}, false
	}
	return *c.header, true
}
