package postgres

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"

	"bagatelle/backend/internal/domain"
	"bagatelle/backend/internal/store"
	"bagatelle/backend/internal/xid"
)

type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Store is the PostgreSQL Repository. Queries run against q, which is either
// the pool or a serializable transaction opened by Atomically; inTx marks the
// transactional view so nested calls join instead of re-opening.
type Store struct {
	db   *sql.DB
	q    dbtx
	inTx bool
}

func New(ctx context.Context, databaseURL string) (*Store, error) {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, err
	}

	db.SetMaxIdleConns(8)
	db.SetMaxOpenConns(30)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 6*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Store{db: db, q: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) Atomically(ctx context.Context, fn func(store.Repository) error) error {
	if s.inTx {
		return fn(s)
	}

	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return err
	}

	if err := fn(&Store{db: s.db, q: tx, inTx: true}); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

func (s *Store) CreateCustomer(ctx context.Context, customer domain.Customer) (*domain.Customer, error) {
	customer.TaxID = strings.TrimSpace(customer.TaxID)
	customer.FullName = strings.TrimSpace(customer.FullName)
	if customer.TaxID == "" || customer.FullName == "" {
		return nil, store.ErrInvalidInput
	}
	if customer.ID == "" {
		customer.ID = xid.New("cus")
	}
	if customer.CreatedAt.IsZero() {
		customer.CreatedAt = time.Now().UTC()
	}

	_, err := s.q.ExecContext(ctx, `
		INSERT INTO customers (id, tax_id, full_name, phone, email, cashback_balance, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
	`, customer.ID, customer.TaxID, customer.FullName, customer.Phone, customer.Email, customer.CashbackBalance, customer.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrConflict
		}
		return nil, err
	}

	created := customer
	return &created, nil
}

func (s *Store) GetCustomer(ctx context.Context, id string) (*domain.Customer, error) {
	return s.scanCustomer(s.q.QueryRowContext(ctx, `
		SELECT id, tax_id, full_name, phone, email, cashback_balance, created_at
		FROM customers
		WHERE id = $1
	`, id))
}

func (s *Store) GetCustomerByTaxID(ctx context.Context, taxID string) (*domain.Customer, error) {
	return s.scanCustomer(s.q.QueryRowContext(ctx, `
		SELECT id, tax_id, full_name, phone, email, cashback_balance, created_at
		FROM customers
		WHERE tax_id = $1
	`, strings.TrimSpace(taxID)))
}

func (s *Store) scanCustomer(row *sql.Row) (*domain.Customer, error) {
	var c domain.Customer
	err := row.Scan(&c.ID, &c.TaxID, &c.FullName, &c.Phone, &c.Email, &c.CashbackBalance, &c.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	c.CreatedAt = c.CreatedAt.UTC()
	return &c, nil
}

func (s *Store) UpdateCustomer(ctx context.Context, customer domain.Customer) (*domain.Customer, error) {
	customer.TaxID = strings.TrimSpace(customer.TaxID)
	customer.FullName = strings.TrimSpace(customer.FullName)
	if customer.TaxID == "" || customer.FullName == "" {
		return nil, store.ErrInvalidInput
	}

	res, err := s.q.ExecContext(ctx, `
		UPDATE customers
		SET tax_id = $2, full_name = $3, phone = $4, email = $5, cashback_balance = $6
		WHERE id = $1
	`, customer.ID, customer.TaxID, customer.FullName, customer.Phone, customer.Email, customer.CashbackBalance)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrConflict
		}
		return nil, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if affected == 0 {
		return nil, store.ErrNotFound
	}

	updated := customer
	return &updated, nil
}

func (s *Store) DeleteCustomer(ctx context.Context, id string) error {
	if !s.inTx {
		return s.Atomically(ctx, func(repo store.Repository) error {
			return repo.DeleteCustomer(ctx, id)
		})
	}

	if _, err := s.q.ExecContext(ctx, `DELETE FROM cashback_entries WHERE customer_id = $1`, id); err != nil {
		return err
	}
	if _, err := s.q.ExecContext(ctx, `
		DELETE FROM sale_lines WHERE sale_id IN (SELECT id FROM sales WHERE customer_id = $1)
	`, id); err != nil {
		return err
	}
	if _, err := s.q.ExecContext(ctx, `DELETE FROM sales WHERE customer_id = $1`, id); err != nil {
		return err
	}

	res, err := s.q.ExecContext(ctx, `DELETE FROM customers WHERE id = $1`, id)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) ListCustomers(ctx context.Context) ([]domain.Customer, error) {
	return s.queryCustomers(ctx, `
		SELECT id, tax_id, full_name, phone, email, cashback_balance, created_at
		FROM customers
		ORDER BY full_name, id
	`)
}

func (s *Store) SearchCustomers(ctx context.Context, term string) ([]domain.Customer, error) {
	term = strings.TrimSpace(term)
	if term == "" {
		return s.ListCustomers(ctx)
	}
	pattern := "%" + term + "%"
	return s.queryCustomers(ctx, `
		SELECT id, tax_id, full_name, phone, email, cashback_balance, created_at
		FROM customers
		WHERE full_name ILIKE $1 OR tax_id LIKE $1
		ORDER BY full_name, id
	`, pattern)
}

func (s *Store) queryCustomers(ctx context.Context, query string, args ...any) ([]domain.Customer, error) {
	rows, err := s.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	customers := make([]domain.Customer, 0, 32)
	for rows.Next() {
		var c domain.Customer
		if err := rows.Scan(&c.ID, &c.TaxID, &c.FullName, &c.Phone, &c.Email, &c.CashbackBalance, &c.CreatedAt); err != nil {
			return nil, err
		}
		c.CreatedAt = c.CreatedAt.UTC()
		customers = append(customers, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return customers, nil
}

func (s *Store) CustomerExistsByTaxID(ctx context.Context, taxID string) (bool, error) {
	var exists bool
	err := s.q.QueryRowContext(ctx, `
		SELECT EXISTS (SELECT 1 FROM customers WHERE tax_id = $1)
	`, strings.TrimSpace(taxID)).Scan(&exists)
	return exists, err
}

func (s *Store) CreateProduct(ctx context.Context, product domain.Product) (*domain.Product, error) {
	product.Name = strings.TrimSpace(product.Name)
	if product.Name == "" || !product.Price.IsPositive() {
		return nil, store.ErrInvalidInput
	}
	if product.ID == "" {
		product.ID = xid.New("prd")
	}
	if product.CreatedAt.IsZero() {
		product.CreatedAt = time.Now().UTC()
	}

	_, err := s.q.ExecContext(ctx, `
		INSERT INTO products (id, name, brand, volume, price, created_at)
		VALUES ($1,$2,$3,$4,$5,$6)
	`, product.ID, product.Name, product.Brand, product.Volume, product.Price, product.CreatedAt)
	if err != nil {
		return nil, err
	}

	created := product
	return &created, nil
}

func (s *Store) GetProduct(ctx context.Context, id string) (*domain.Product, error) {
	var p domain.Product
	err := s.q.QueryRowContext(ctx, `
		SELECT id, name, brand, volume, price, created_at
		FROM products
		WHERE id = $1
	`, id).Scan(&p.ID, &p.Name, &p.Brand, &p.Volume, &p.Price, &p.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	p.CreatedAt = p.CreatedAt.UTC()
	return &p, nil
}

func (s *Store) GetProductsByIDs(ctx context.Context, ids []string) (map[string]domain.Product, error) {
	result := make(map[string]domain.Product, len(ids))
	if len(ids) == 0 {
		return result, nil
	}

	rows, err := s.q.QueryContext(ctx, `
		SELECT id, name, brand, volume, price, created_at
		FROM products
		WHERE id = ANY($1)
	`, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var p domain.Product
		if err := rows.Scan(&p.ID, &p.Name, &p.Brand, &p.Volume, &p.Price, &p.CreatedAt); err != nil {
			return nil, err
		}
		result[p.ID] = p
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (s *Store) UpdateProduct(ctx context.Context, product domain.Product) (*domain.Product, error) {
	product.Name = strings.TrimSpace(product.Name)
	if product.Name == "" || !product.Price.IsPositive() {
		return nil, store.ErrInvalidInput
	}

	res, err := s.q.ExecContext(ctx, `
		UPDATE products
		SET name = $2, brand = $3, volume = $4, price = $5
		WHERE id = $1
	`, product.ID, product.Name, product.Brand, product.Volume, product.Price)
	if err != nil {
		return nil, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if affected == 0 {
		return nil, store.ErrNotFound
	}

	updated := product
	return &updated, nil
}

func (s *Store) DeleteProduct(ctx context.Context, id string) error {
	res, err := s.q.ExecContext(ctx, `DELETE FROM products WHERE id = $1`, id)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) ListProducts(ctx context.Context) ([]domain.Product, error) {
	return s.queryProducts(ctx, `
		SELECT id, name, brand, volume, price, created_at
		FROM products
		ORDER BY name, id
	`)
}

func (s *Store) SearchProducts(ctx context.Context, term string) ([]domain.Product, error) {
	term = strings.TrimSpace(term)
	if term == "" {
		return s.ListProducts(ctx)
	}
	pattern := "%" + term + "%"
	return s.queryProducts(ctx, `
		SELECT id, name, brand, volume, price, created_at
		FROM products
		WHERE name ILIKE $1 OR brand ILIKE $1
		ORDER BY name, id
	`, pattern)
}

func (s *Store) queryProducts(ctx context.Context, query string, args ...any) ([]domain.Product, error) {
	rows, err := s.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	products := make([]domain.Product, 0, 64)
	for rows.Next() {
		var p domain.Product
		if err := rows.Scan(&p.ID, &p.Name, &p.Brand, &p.Volume, &p.Price, &p.CreatedAt); err != nil {
			return nil, err
		}
		p.CreatedAt = p.CreatedAt.UTC()
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return products, nil
}

func (s *Store) CreateLedgerEntry(ctx context.Context, entry domain.CashbackEntry) (*domain.CashbackEntry, error) {
	if entry.CustomerID == "" || !entry.Amount.IsPositive() {
		return nil, store.ErrInvalidInput
	}
	if entry.ID == "" {
		entry.ID = xid.New("cb")
	}

	err := s.q.QueryRowContext(ctx, `
		INSERT INTO cashback_entries (id, customer_id, amount, issued_on, expires_on, consumed_amount, consumed, sale_id)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		RETURNING seq
	`, entry.ID, entry.CustomerID, entry.Amount, entry.IssuedOn, entry.ExpiresOn, entry.ConsumedAmount, entry.Consumed, nullIfEmpty(entry.SaleID)).Scan(&entry.Seq)
	if err != nil {
		if isForeignKeyViolation(err) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}

	created := entry
	return &created, nil
}

func (s *Store) UpdateLedgerEntry(ctx context.Context, entry domain.CashbackEntry) error {
	res, err := s.q.ExecContext(ctx, `
		UPDATE cashback_entries
		SET consumed_amount = $2, consumed = $3
		WHERE id = $1
	`, entry.ID, entry.ConsumedAmount, entry.Consumed)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) FindOpenLedgerEntries(ctx context.Context, customerID string, asOf time.Time) ([]domain.CashbackEntry, error) {
	return s.queryEntries(ctx, `
		SELECT id, customer_id, seq, amount, issued_on, expires_on, consumed_amount, consumed, COALESCE(sale_id, '')
		FROM cashback_entries
		WHERE customer_id = $1 AND consumed = false AND expires_on >= $2
		ORDER BY expires_on, seq
	`, customerID, domain.DateOf(asOf))
}

func (s *Store) FindLedgerByCustomer(ctx context.Context, customerID string) ([]domain.CashbackEntry, error) {
	if _, err := s.GetCustomer(ctx, customerID); err != nil {
		return nil, err
	}
	return s.queryEntries(ctx, `
		SELECT id, customer_id, seq, amount, issued_on, expires_on, consumed_amount, consumed, COALESCE(sale_id, '')
		FROM cashback_entries
		WHERE customer_id = $1
		ORDER BY issued_on DESC, seq DESC
	`, customerID)
}

func (s *Store) FindLedgerExpiringBetween(ctx context.Context, from time.Time, to time.Time) ([]domain.CashbackEntry, error) {
	return s.queryEntries(ctx, `
		SELECT id, customer_id, seq, amount, issued_on, expires_on, consumed_amount, consumed, COALESCE(sale_id, '')
		FROM cashback_entries
		WHERE consumed = false AND expires_on BETWEEN $1 AND $2
		ORDER BY expires_on, seq
	`, from, to)
}

func (s *Store) queryEntries(ctx context.Context, query string, args ...any) ([]domain.CashbackEntry, error) {
	rows, err := s.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := make([]domain.CashbackEntry, 0, 16)
	for rows.Next() {
		var e domain.CashbackEntry
		if err := rows.Scan(&e.ID, &e.CustomerID, &e.Seq, &e.Amount, &e.IssuedOn, &e.ExpiresOn, &e.ConsumedAmount, &e.Consumed, &e.SaleID); err != nil {
			return nil, err
		}
		e.IssuedOn = e.IssuedOn.UTC()
		e.ExpiresOn = e.ExpiresOn.UTC()
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return entries, nil
}

func (s *Store) CreateSale(ctx context.Context, sale domain.Sale) (*domain.Sale, error) {
	if sale.CustomerID == "" || len(sale.Lines) == 0 {
		return nil, store.ErrInvalidInput
	}
	if !s.inTx {
		var created *domain.Sale
		err := s.Atomically(ctx, func(repo store.Repository) error {
			var err error
			created, err = repo.CreateSale(ctx, sale)
			return err
		})
		return created, err
	}

	if sale.ID == "" {
		sale.ID = xid.New("sal")
	}
	if sale.SoldAt.IsZero() {
		sale.SoldAt = time.Now().UTC()
	}

	_, err := s.q.ExecContext(ctx, `
		INSERT INTO sales (id, customer_id, sold_at, cashback_used, total)
		VALUES ($1,$2,$3,$4,$5)
	`, sale.ID, sale.CustomerID, sale.SoldAt, sale.CashbackUsed, sale.Total)
	if err != nil {
		if isForeignKeyViolation(err) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}

	for i, line := range sale.Lines {
		if _, err := s.q.ExecContext(ctx, `
			INSERT INTO sale_lines (sale_id, line_no, product_id, quantity, unit_price)
			VALUES ($1,$2,$3,$4,$5)
		`, sale.ID, i, line.ProductID, line.Quantity, line.UnitPrice); err != nil {
			return nil, err
		}
	}

	created := sale
	return &created, nil
}

func (s *Store) GetSale(ctx context.Context, id string) (*domain.Sale, error) {
	var sale domain.Sale
	err := s.q.QueryRowContext(ctx, `
		SELECT id, customer_id, sold_at, cashback_used, total
		FROM sales
		WHERE id = $1
	`, id).Scan(&sale.ID, &sale.CustomerID, &sale.SoldAt, &sale.CashbackUsed, &sale.Total)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	sale.SoldAt = sale.SoldAt.UTC()

	lines, err := s.linesBySale(ctx, []string{sale.ID})
	if err != nil {
		return nil, err
	}
	sale.Lines = lines[sale.ID]
	return &sale, nil
}

func (s *Store) FindSalesByCustomer(ctx context.Context, customerID string) ([]domain.Sale, error) {
	return s.querySales(ctx, `
		SELECT id, customer_id, sold_at, cashback_used, total
		FROM sales
		WHERE customer_id = $1
		ORDER BY sold_at DESC, id DESC
	`, customerID)
}

func (s *Store) FindSalesByDateRange(ctx context.Context, from time.Time, to time.Time) ([]domain.Sale, error) {
	return s.querySales(ctx, `
		SELECT id, customer_id, sold_at, cashback_used, total
		FROM sales
		WHERE sold_at >= $1 AND sold_at <= $2
		ORDER BY sold_at DESC, id DESC
	`, from, to)
}

func (s *Store) querySales(ctx context.Context, query string, args ...any) ([]domain.Sale, error) {
	rows, err := s.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	sales := make([]domain.Sale, 0, 32)
	ids := make([]string, 0, 32)
	for rows.Next() {
		var sale domain.Sale
		if err := rows.Scan(&sale.ID, &sale.CustomerID, &sale.SoldAt, &sale.CashbackUsed, &sale.Total); err != nil {
			return nil, err
		}
		sale.SoldAt = sale.SoldAt.UTC()
		sales = append(sales, sale)
		ids = append(ids, sale.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	lines, err := s.linesBySale(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range sales {
		sales[i].Lines = lines[sales[i].ID]
	}
	return sales, nil
}

func (s *Store) linesBySale(ctx context.Context, saleIDs []string) (map[string][]domain.SaleLine, error) {
	result := make(map[string][]domain.SaleLine, len(saleIDs))
	if len(saleIDs) == 0 {
		return result, nil
	}

	rows, err := s.q.QueryContext(ctx, `
		SELECT sale_id, product_id, quantity, unit_price
		FROM sale_lines
		WHERE sale_id = ANY($1)
		ORDER BY sale_id, line_no
	`, saleIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var saleID string
		var line domain.SaleLine
		if err := rows.Scan(&saleID, &line.ProductID, &line.Quantity, &line.UnitPrice); err != nil {
			return nil, err
		}
		result[saleID] = append(result[saleID], line)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (s *Store) CreateUser(ctx context.Context, user domain.UserAccount) error {
	username := strings.ToLower(strings.TrimSpace(user.Username))
	if username == "" || strings.TrimSpace(user.Password) == "" {
		return store.ErrInvalidInput
	}
	if user.Role == "" {
		user.Role = "attendant"
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}

	_, err := s.q.ExecContext(ctx, `
		INSERT INTO users (username, password, role, active, created_at)
		VALUES ($1,$2,$3,true,$4)
	`, username, user.Password, user.Role, user.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return store.ErrConflict
		}
		return err
	}
	return nil
}

func (s *Store) ListUsers(ctx context.Context) ([]domain.UserAccount, error) {
	rows, err := s.q.QueryContext(ctx, `
		SELECT username, password, role, active, created_at
		FROM users
		ORDER BY username
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	users := make([]domain.UserAccount, 0, 8)
	for rows.Next() {
		var user domain.UserAccount
		if err := rows.Scan(&user.Username, &user.Password, &user.Role, &user.Active, &user.CreatedAt); err != nil {
			return nil, err
		}
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return users, nil
}

func (s *Store) UpdateUserPassword(ctx context.Context, username string, password string) error {
	username = strings.ToLower(strings.TrimSpace(username))
	if username == "" || strings.TrimSpace(password) == "" {
		return store.ErrInvalidInput
	}

	res, err := s.q.ExecContext(ctx, `
		UPDATE users SET password = $2 WHERE username = $1
	`, username, password)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}

func isForeignKeyViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23503"
	}
	return false
}

func nullIfEmpty(val string) any {
	if val == "" {
		return nil
	}
	return val
}
