/*
Package schema defines the input model for declarative module definitions.

A module is a named entity made of typed attributes. Attributes may be
primitives, nested objects, or references to other modules in the same batch.
The package only describes and loads modules; everything derived from them
(validation rules, storage descriptors, enums, population paths) is produced
by package compiler.

# Module Definition

Modules are declared in YAML, keyed by name:

	category:
	  attributes:
	    - { name: title,  type: string, required: true, unique: true }
	    - { name: parent, type: category }

	user:
	  auth: { identifier: email, password: password }
	  attributes:
	    - { name: email,    type: string, required: true, unique: true }
	    - { name: password, type: string, required: true }
	    - { name: role,     type: string, enum: [reader, editor], default: reader }
	    - name: address
	      type: object
	      attributes:
	        - { name: city,    type: string }
	        - { name: country, type: string }
	    - { name: favorites, type: categories, array: true }

The key is singularized and pluralized by convention ("user" becomes
singularName "user" and pluralName "users"). A document may also be a
sequence of single-key mappings.

# Attribute Types

  - string, number, boolean, date: primitives
  - object: nested shape, requires attributes
  - <module name>: reference to another module (singular or plural name)

The aliases int, integer, float, double and decimal load as number, and bool
loads as boolean.

# Parsing

	batch, err := schema.ParseFile("modules.yaml")
	batch, err := schema.ParseDir("modules/")

Every module is shape-checked on parse. Batch-wide checks (duplicate names,
unresolvable types) run through ValidateBatch.
*/
package schema
