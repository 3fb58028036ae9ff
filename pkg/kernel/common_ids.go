package kernel

// UserID is a user's canonical identifier: the identity provider's subject id
// when the account came from an external provider, or a generated id for
// internally created accounts.
type UserID string

func NewUserID(id string) UserID { return UserID(id) }
func (u UserID) String() string  { return string(u) }
func (u UserID) IsEmpty() bool   { return string(u) == "" }

// TenantID is the top-level isolation boundary. Every entity is partitioned
// by tenant.
type TenantID string

func NewTenantID(id string) TenantID { return TenantID(id) }
func (t TenantID) String() string    { return string(t) }
func (t TenantID) IsEmpty() bool     { return string(t) == "" }

type OrganizationID string

func NewOrganizationID(id string) OrganizationID { return OrganizationID(id) }
func (o OrganizationID) String() string          { return string(o) }
func (o OrganizationID) IsEmpty() bool           { return string(o) == "" }

type LicenseID string

func NewLicenseID(id string) LicenseID { return LicenseID(id) }
func (l LicenseID) String() string     { return string(l) }
func (l LicenseID) IsEmpty() bool      { return string(l) == "" }

type ProductID string

func NewProductID(id string) ProductID { return ProductID(id) }
func (p ProductID) String() string     { return string(p) }
func (p ProductID) IsEmpty() bool      { return string(p) == "" }
