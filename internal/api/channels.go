package api

// Channel names the realtime data streams the socket can subscribe to.
type Channel string

const (
	ChannelAccounts           Channel = "accounts"
	ChannelQuotes             Channel = "quotes"
	ChannelOrderdepths        Channel = "orderdepths"
	ChannelTrades             Channel = "trades"
	ChannelBrokertradesummary Channel = "brokertradesummary"
	ChannelPositions          Channel = "positions"
	ChannelOrders             Channel = "orders"
	ChannelDeals              Channel = "deals"
)

// AccountScoped reports whether the channel is subscribed per account set
// rather than per instrument. These use a single subscription path for the
// whole id list.
func (c Channel) AccountScoped() bool {
	switch c {
	case ChannelOrders, ChannelDeals, ChannelPositions:
		return true
	}
	return false
}

// InstrumentType names the instrument kinds addressable on resource paths.
type InstrumentType string

const (
	InstrumentStock         InstrumentType = "stock"
	InstrumentFund          InstrumentType = "fund"
	InstrumentBond          InstrumentType = "bond"
	InstrumentOption        InstrumentType = "option"
	InstrumentFutureForward InstrumentType = "future_forward"
	InstrumentCertificate   InstrumentType = "certificate"
	InstrumentWarrant       InstrumentType = "warrant"
	InstrumentETF           InstrumentType = "exchange_traded_fund"
	InstrumentIndex         InstrumentType = "index"
)
