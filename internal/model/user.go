package model

import "time"

// Gender is an optional user attribute consulted by the ladies-only
// seat policy.
type Gender string

const (
    GenderFemale Gender = "FEMALE"
    GenderMale   Gender = "MALE"
)

// ParseGender accepts FEMALE or MALE.  An empty string yields nil.
func ParseGender(s string) (*Gender, bool) {
    switch Gender(s) {
    case "":
        return nil, true
    case GenderFemale, GenderMale:
        g := Gender(s)
        return &g, true
    }
    return nil, false
}

// Roles carried in access tokens.
const (
    RoleOwner    = "OWNER"
    RoleCustomer = "CUSTOMER"
)

// User represents an application user record as stored in the
// `users` table.  The booking core only reads ID, Role and Gender.
//
// Fields:
//  ID           – primary key identifier of the user.
//  Email        – unique email address.
//  PasswordHash – bcrypt hashed password.
//  Role         – OWNER or CUSTOMER.
//  Gender       – FEMALE, MALE or nil when not provided.
//  IsActive     – whether the account is active.
//  CreatedAt    – timestamp of creation.
type User struct {
    ID           uint64    // users.id
    Email        string    // users.email
    PasswordHash string    // users.password_hash
    Role         string    // users.role
    Gender       *Gender   // users.gender (nullable)
    IsActive     bool      // users.is_active
    CreatedAt    time.Time // users.created_at
}
