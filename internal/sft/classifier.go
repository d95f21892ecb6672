package sft

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// Classifier maps topic0 to a known event and decodes the log payload.
type Classifier struct {
	events map[common.Hash]classified
}

type classified struct {
	kind  Kind
	event abi.Event
}

// NewClassifier builds a classifier for the SFT and vault events.
func NewClassifier() (*Classifier, error) {
	sftABI, err := SFTABI()
	if err != nil {
		return nil, fmt.Errorf("parse sft abi: %w", err)
	}
	vaultABI, err := VaultABI()
	if err != nil {
		return nil, fmt.Errorf("parse vault abi: %w", err)
	}

	events := map[common.Hash]classified{}
	register := func(kind Kind, event abi.Event) {
		events[event.ID] = classified{kind: kind, event: event}
	}
	register(KindTransferToken, sftABI.Events["Transfer"])
	register(KindTransferValue, sftABI.Events["TransferValue"])
	register(KindSlotChanged, sftABI.Events["SlotChanged"])
	register(KindClaim, vaultABI.Events["Claim"])

	return &Classifier{events: events}, nil
}

// Topic returns the signature hash for kind.
func (c *Classifier) Topic(kind Kind) common.Hash {
	for topic, entry := range c.events {
		if entry.kind == kind {
			return topic
		}
	}
	return common.Hash{}
}

// Topics returns the signature hashes for kinds, in the given order.
func (c *Classifier) Topics(kinds ...Kind) []common.Hash {
	out := make([]common.Hash, 0, len(kinds))
	for _, kind := range kinds {
		if topic := c.Topic(kind); topic != (common.Hash{}) {
			out = append(out, topic)
		}
	}
	return out
}

// Classify returns the kind for a log's topic0, or KindUnknown.
func (c *Classifier) Classify(log types.Log) Kind {
	if len(log.Topics) == 0 {
		return KindUnknown
	}
	entry, ok := c.events[log.Topics[0]]
	if !ok {
		return KindUnknown
	}
	return entry.kind
}

// Decode decodes a log into its typed event. Logs with an unknown signature
// yield a nil event and no error; a known signature whose payload does not
// match the ABI shape is an error.
func (c *Classifier) Decode(log types.Log) (Event, error) {
	if len(log.Topics) == 0 {
		return nil, nil
	}
	entry, ok := c.events[log.Topics[0]]
	if !ok {
		return nil, nil
	}

	fields, err := decodeFields(entry.event, log)
	if err != nil {
		return nil, err
	}

	switch entry.kind {
	case KindTransferValue:
		var ev TransferValue
		if ev.FromTokenID, err = bigField(fields, "_fromTokenId"); err != nil {
			return nil, err
		}
		if ev.ToTokenID, err = bigField(fields, "_toTokenId"); err != nil {
			return nil, err
		}
		if ev.Value, err = bigField(fields, "_value"); err != nil {
			return nil, err
		}
		return ev, nil
	case KindSlotChanged:
		var ev SlotChanged
		if ev.TokenID, err = bigField(fields, "_tokenId"); err != nil {
			return nil, err
		}
		if ev.OldSlot, err = bigField(fields, "_oldSlot"); err != nil {
			return nil, err
		}
		if ev.NewSlot, err = bigField(fields, "_newSlot"); err != nil {
			return nil, err
		}
		return ev, nil
	case KindTransferToken:
		var ev TransferToken
		if ev.From, err = addressField(fields, "_from"); err != nil {
			return nil, err
		}
		if ev.To, err = addressField(fields, "_to"); err != nil {
			return nil, err
		}
		if ev.TokenID, err = bigField(fields, "_tokenId"); err != nil {
			return nil, err
		}
		return ev, nil
	case KindClaim:
		var ev Claim
		if ev.Owner, err = addressField(fields, "owner"); err != nil {
			return nil, err
		}
		if ev.Amount, err = bigField(fields, "amount"); err != nil {
			return nil, err
		}
		return ev, nil
	default:
		return nil, fmt.Errorf("unsupported event kind: %s", entry.kind)
	}
}

func decodeFields(event abi.Event, log types.Log) (map[string]interface{}, error) {
	indexed := indexedArguments(event.Inputs)
	if len(log.Topics) != len(indexed)+1 {
		return nil, fmt.Errorf("%s: expected %d topics, got %d", event.Name, len(indexed)+1, len(log.Topics))
	}

	fields := make(map[string]interface{}, len(event.Inputs))
	if err := abi.ParseTopicsIntoMap(fields, indexed, log.Topics[1:]); err != nil {
		return nil, fmt.Errorf("%s: parse topics: %w", event.Name, err)
	}

	nonIndexed := event.Inputs.NonIndexed()
	if len(nonIndexed) > 0 {
		if err := nonIndexed.UnpackIntoMap(fields, log.Data); err != nil {
			return nil, fmt.Errorf("%s: unpack data: %w", event.Name, err)
		}
	}
	return fields, nil
}

func indexedArguments(args abi.Arguments) abi.Arguments {
	indexed := make(abi.Arguments, 0, len(args))
	for _, arg := range args {
		if arg.Indexed {
			indexed = append(indexed, arg)
		}
	}
	return indexed
}

func bigField(fields map[string]interface{}, name string) (*big.Int, error) {
	value, ok := fields[name]
	if !ok {
		return nil, fmt.Errorf("missing field %s", name)
	}
	typed, ok := value.(*big.Int)
	if !ok || typed == nil {
		return nil, fmt.Errorf("field %s: unexpected type %T", name, value)
	}
	return typed, nil
}

func addressField(fields map[string]interface{}, name string) (common.Address, error) {
	value, ok := fields[name]
	if !ok {
		return common.Address{}, fmt.Errorf("missing field %s", name)
	}
	typed, ok := value.(common.Address)
	if !ok {
		return common.Address{}, fmt.Errorf("field %s: unexpected type %T", name, value)
	}
	return typed, nil
}
