package repository

// Tables du keyspace utilisateurs
var usersSchema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		user_id uuid PRIMARY KEY,
		email text,
		password text,
		provider text,
		provider_id text,
		created_at timestamp
	)`,
	`CREATE TABLE IF NOT EXISTS users_by_email (
		email text PRIMARY KEY,
		user_id uuid
	)`,
	`CREATE TABLE IF NOT EXISTS profiles (
		user_id uuid PRIMARY KEY,
		email text,
		role text,
		first_name text,
		last_name text,
		phone text,
		address text,
		city text,
		country text,
		postal_code text,
		store_name text,
		store_logo text,
		store_slug text,
		created_at timestamp,
		updated_at timestamp
	)`,
	`CREATE TABLE IF NOT EXISTS profiles_by_slug (
		store_slug text PRIMARY KEY,
		user_id uuid
	)`,
	`CREATE TABLE IF NOT EXISTS audit_logs (
		log_id timeuuid PRIMARY KEY,
		user_id text,
		user_email text,
		action text,
		resource text,
		resource_id text,
		ip_address text,
		user_agent text,
		success boolean,
		error_msg text,
		timestamp timestamp
	)`,
}

// Tables du keyspace retours
var returnsSchema = []string{
	`CREATE TABLE IF NOT EXISTS returns (
		return_id uuid PRIMARY KEY,
		merchant_id uuid,
		order_id text,
		product_name text,
		reason text,
		customer_email text,
		photo_url text,
		status text,
		notes text,
		item_condition text,
		refund_amount double,
		decided_at timestamp,
		created_at timestamp,
		updated_at timestamp
	)`,
	`CREATE TABLE IF NOT EXISTS refund_policies (
		merchant_id uuid,
		item_condition text,
		policy_id uuid,
		refund_percentage double,
		description text,
		created_at timestamp,
		updated_at timestamp,
		PRIMARY KEY (merchant_id, item_condition)
	)`,
	`CREATE TABLE IF NOT EXISTS pickups (
		pickup_id uuid PRIMARY KEY,
		user_id uuid,
		return_id uuid,
		pickup_date text,
		time_slot text,
		address text,
		city text,
		postal_code text,
		package_size text,
		status text,
		courier_tracking_number text,
		notes text,
		created_at timestamp,
		updated_at timestamp
	)`,
}

const (
	returnColumns = `return_id, merchant_id, order_id, product_name, reason, customer_email, photo_url,
		status, notes, item_condition, refund_amount, decided_at, created_at, updated_at`

	policyColumns = `policy_id, merchant_id, item_condition, refund_percentage, description, created_at, updated_at`

	pickupColumns = `pickup_id, user_id, return_id, pickup_date, time_slot, address, city, postal_code,
		package_size, status, courier_tracking_number, notes, created_at, updated_at`

	profileColumns = `user_id, email, role, first_name, last_name, phone, address, city, country,
		postal_code, store_name, store_logo, store_slug, created_at, updated_at`

	userColumns = `user_id, email, password, provider, provider_id, created_at`
)
