package storage

import (
	"context"
	"database/sql"
)

// DBTX is satisfied by both *sql.DB and *sql.Tx.
type DBTX interface {
	ExecContext(context.Context, string, ...any) (sql.Result, error)
	QueryContext(context.Context, string, ...any) (*sql.Rows, error)
	QueryRowContext(context.Context, string, ...any) *sql.Row
}

type Queries struct {
	db DBTX
}

func New(db DBTX) *Queries {
	return &Queries{db: db}
}

func (q *Queries) WithTx(tx *sql.Tx) *Queries {
	return &Queries{db: tx}
}

// Account is a row of the accounts table.
type Account struct {
	ID   string
	Name string
}

// Transaction is a row of the transactions table. Amount is a decimal
// string and SplitWith a JSON array.
type Transaction struct {
	ID          string
	Type        string
	Category    string
	Amount      string
	Description string
	Date        string
	Person      string
	SplitWith   string
	GroupID     string
	AccountID   string
}

const listAccounts = `SELECT id, name FROM accounts ORDER BY rowid`

func (q *Queries) ListAccounts(ctx context.Context) ([]Account, error) {
	rows, err := q.db.QueryContext(ctx, listAccounts)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Account
	for rows.Next() {
		var i Account
		if err := rows.Scan(&i.ID, &i.Name); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	return items, rows.Err()
}

const getAccount = `SELECT id, name FROM accounts WHERE id = ?`

func (q *Queries) GetAccount(ctx context.Context, id string) (Account, error) {
	var i Account
	err := q.db.QueryRowContext(ctx, getAccount, id).Scan(&i.ID, &i.Name)
	return i, err
}

const createAccount = `INSERT INTO accounts (id, name) VALUES (?, ?)`

func (q *Queries) CreateAccount(ctx context.Context, arg Account) error {
	_, err := q.db.ExecContext(ctx, createAccount, arg.ID, arg.Name)
	return err
}

const deleteAccount = `DELETE FROM accounts WHERE id = ?`

func (q *Queries) DeleteAccount(ctx context.Context, id string) (int64, error) {
	res, err := q.db.ExecContext(ctx, deleteAccount, id)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

const deleteAccountTransactions = `DELETE FROM transactions WHERE account_id = ?`

func (q *Queries) DeleteAccountTransactions(ctx context.Context, accountID string) (int64, error) {
	res, err := q.db.ExecContext(ctx, deleteAccountTransactions, accountID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

const transactionColumns = `id, type, category, amount, description, date, person, split_with, group_id, account_id`

const listTransactions = `SELECT ` + transactionColumns + ` FROM transactions ORDER BY date DESC, id`

func (q *Queries) ListTransactions(ctx context.Context) ([]Transaction, error) {
	rows, err := q.db.QueryContext(ctx, listTransactions)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Transaction
	for rows.Next() {
		var i Transaction
		if err := rows.Scan(&i.ID, &i.Type, &i.Category, &i.Amount, &i.Description,
			&i.Date, &i.Person, &i.SplitWith, &i.GroupID, &i.AccountID); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	return items, rows.Err()
}

const createTransaction = `INSERT INTO transactions (` + transactionColumns + `)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

func (q *Queries) CreateTransaction(ctx context.Context, arg Transaction) error {
	_, err := q.db.ExecContext(ctx, createTransaction, arg.ID, arg.Type, arg.Category, arg.Amount,
		arg.Description, arg.Date, arg.Person, arg.SplitWith, arg.GroupID, arg.AccountID)
	return err
}

const updateTransaction = `UPDATE transactions
SET type = ?, category = ?, amount = ?, description = ?, date = ?, person = ?,
    split_with = ?, group_id = ?, account_id = ?
WHERE id = ?`

func (q *Queries) UpdateTransaction(ctx context.Context, arg Transaction) (int64, error) {
	res, err := q.db.ExecContext(ctx, updateTransaction, arg.Type, arg.Category, arg.Amount,
		arg.Description, arg.Date, arg.Person, arg.SplitWith, arg.GroupID, arg.AccountID, arg.ID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

const deleteTransaction = `DELETE FROM transactions WHERE id = ?`

func (q *Queries) DeleteTransaction(ctx context.Context, id string) (int64, error) {
	res, err := q.db.ExecContext(ctx, deleteTransaction, id)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

const listGroupRows = `SELECT g.id, g.name, COALESCE(m.name, '')
FROM budget_groups g
LEFT JOIN group_members m ON m.group_id = g.id
ORDER BY g.rowid, m.name`

// GroupMemberRow is one (group, member) pair; Member is empty for a group
// without members.
type GroupMemberRow struct {
	GroupID string
	Name    string
	Member  string
}

func (q *Queries) ListGroupRows(ctx context.Context) ([]GroupMemberRow, error) {
	rows, err := q.db.QueryContext(ctx, listGroupRows)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []GroupMemberRow
	for rows.Next() {
		var i GroupMemberRow
		if err := rows.Scan(&i.GroupID, &i.Name, &i.Member); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	return items, rows.Err()
}

const createGroup = `INSERT INTO budget_groups (id, name) VALUES (?, ?)`

func (q *Queries) CreateGroup(ctx context.Context, id, name string) error {
	_, err := q.db.ExecContext(ctx, createGroup, id, name)
	return err
}

const renameGroup = `UPDATE budget_groups SET name = ? WHERE id = ?`

func (q *Queries) RenameGroup(ctx context.Context, id, name string) (int64, error) {
	res, err := q.db.ExecContext(ctx, renameGroup, name, id)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

const deleteGroupMembers = `DELETE FROM group_members WHERE group_id = ?`

func (q *Queries) DeleteGroupMembers(ctx context.Context, groupID string) error {
	_, err := q.db.ExecContext(ctx, deleteGroupMembers, groupID)
	return err
}

const addGroupMember = `INSERT OR IGNORE INTO group_members (group_id, name) VALUES (?, ?)`

func (q *Queries) AddGroupMember(ctx context.Context, groupID, name string) error {
	_, err := q.db.ExecContext(ctx, addGroupMember, groupID, name)
	return err
}
