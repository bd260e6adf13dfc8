package db

import "github.com/pkg/errors"

const (
	MsgBeginTransactionFailed   = "begin transaction failed"
	MsgNoActiveTransaction      = "no active transaction"
	MsgDbConnectionNotAvailable = "database connection is not available"
)

var (
	ErrBeginTransactionFailed   = errors.New(MsgBeginTransactionFailed)
	ErrNoActiveTransaction      = errors.New(MsgNoActiveTransaction)
	ErrDbConnectionNotAvailable = errors.New(MsgDbConnectionNotAvailable)
)
