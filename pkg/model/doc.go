// Package model keeps reflection metadata for host-supplied structs.
//
// Hosts register their persisted types at startup:
//
//	reg := model.NewRegistry()
//	reg.MustRegister(&User{}, &Article{})
//
// Columns come from the `db` struct tag (`db:"email,unique"`, `db:"id,pk"`,
// `db:"-"` to skip) or from the snake_case form of the field name. A field can
// be mutated through a Set<Field> method on the pointer type or, unless
// tagged readonly, by direct assignment. A model is an account candidate when
// its pointer type implements setup.Account.
package model
