package models

// AddressRecord is one row of the ip_addresses table. Exactly one of
// IPAddress/CIDR is non-empty.
type AddressRecord struct {
	ID        int64  `db:"id"`
	UserID    string `db:"user_id"`
	IPAddress string `db:"ip_address"`
	CIDR      string `db:"cidr"`
}

// Value returns whichever of the two address columns is populated.
func (r AddressRecord) Value() string {
	if r.CIDR != "" {
		return r.CIDR
	}
	return r.IPAddress
}

type CommandKind int

const (
	CommandUnknown CommandKind = iota
	CommandStart
	CommandHelp
	CommandAdd
	CommandDelete
	CommandList
	CommandCheck
	CommandBatchAdd
	CommandPlainText
)

// Command is an inbound chat command with its parsed argument.
type Command struct {
	Kind CommandKind
	Arg  string
}

type Button struct {
	Label string
	Data  string
}

// Reply is the transport-agnostic outbound payload: text, optional inline
// buttons (rows of them), and optionally a message to retract.
type Reply struct {
	Text            string
	Buttons         [][]Button
	DeleteMessageID int
}

// Callback tokens attached to the engine's buttons.
const (
	CallbackPrevPagePrefix = "prev_page_"
	CallbackNextPagePrefix = "next_page_"
	CallbackConfirmBatch   = "confirm_batch_add"
	CallbackCancelBatch    = "cancel_batch_add"
)
