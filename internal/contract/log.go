package contract

import (
	"DSCEngine/internal/event"
	"fmt"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

// Log is an event in EVM log form.
type Log struct {
	Topics []common.Hash
	Data   []byte
}

// EncodeLog encodes ev with the ABI's indexed flags: topic 0 is the event
// signature, indexed fields follow as topics, the rest is packed into data.
func EncodeLog(ev event.Event) (Log, error) {
	var values []interface{}
	switch e := ev.(type) {
	case *event.CollateralDeposited:
		values = []interface{}{e.User, e.Token, e.Amount.ToBig()}
	case *event.CollateralRedeemed:
		values = []interface{}{e.RedeemFrom, e.RedeemTo, e.Token, e.Amount.ToBig()}
	default:
		return Log{}, fmt.Errorf("no ABI event for %T", ev)
	}

	abiEvent, ok := parsedABI.Events[ev.EventType().String()]
	if !ok {
		return Log{}, fmt.Errorf("ABI has no event %s", ev.EventType())
	}

	topics := []common.Hash{abiEvent.ID}
	var nonIndexed []interface{}
	for i, input := range abiEvent.Inputs {
		if !input.Indexed {
			nonIndexed = append(nonIndexed, values[i])
			continue
		}
		topic, err := topicFor(values[i])
		if err != nil {
			return Log{}, fmt.Errorf("%s.%s: %w", abiEvent.Name, input.Name, err)
		}
		topics = append(topics, topic)
	}

	data, err := abiEvent.Inputs.NonIndexed().Pack(nonIndexed...)
	if err != nil {
		return Log{}, fmt.Errorf("pack %s data: %w", abiEvent.Name, err)
	}
	return Log{Topics: topics, Data: data}, nil
}

func topicFor(v interface{}) (common.Hash, error) {
	topics, err := abi.MakeTopics([]interface{}{v})
	if err != nil {
		return common.Hash{}, err
	}
	return topics[0][0], nil
}

// DecodeLog is the inverse of EncodeLog.
func DecodeLog(l Log) (event.Event, error) {
	if len(l.Topics) == 0 {
		return nil, fmt.Errorf("log has no topics")
	}
	abiEvent, err := parsedABI.EventByID(l.Topics[0])
	if err != nil {
		return nil, err
	}

	fields := make(map[string]interface{})
	if err := abiEvent.Inputs.UnpackIntoMap(fields, l.Data); err != nil {
		return nil, fmt.Errorf("unpack %s data: %w", abiEvent.Name, err)
	}
	var indexed abi.Arguments
	for _, input := range abiEvent.Inputs {
		if input.Indexed {
			indexed = append(indexed, input)
		}
	}
	if err := abi.ParseTopicsIntoMap(fields, indexed, l.Topics[1:]); err != nil {
		return nil, fmt.Errorf("parse %s topics: %w", abiEvent.Name, err)
	}

	et, err := event.ParseEventType(abiEvent.Name)
	if err != nil {
		return nil, err
	}
	switch et {
	case event.EventTypeCollateralDeposited:
		amount, err := bigField(fields, "amount")
		if err != nil {
			return nil, err
		}
		return &event.CollateralDeposited{
			User:   fields["user"].(common.Address),
			Token:  fields["token"].(common.Address),
			Amount: amount,
		}, nil
	default:
		amount, err := bigField(fields, "amount")
		if err != nil {
			return nil, err
		}
		return &event.CollateralRedeemed{
			RedeemFrom: fields["redeemFrom"].(common.Address),
			RedeemTo:   fields["redeemTo"].(common.Address),
			Token:      fields["token"].(common.Address),
			Amount:     amount,
		}, nil
	}
}
