package services

// keywordReference is the static rules glossary served by the lookupKeyword
// tool. Entry headings are the lines with a leading "*" bullet; a lookup
// returns a heading line plus everything up to the next heading.
const keywordReference = `## Magic: The Gathering Keyword Reference

### Evergreen Keyword Abilities
(Core abilities that may appear in any Magic set)

*   **Deathtouch:** Any amount of damage this creature deals to a creature is enough to destroy it.
*   **Defender:** This creature can't attack.
*   **Double strike:** This creature deals both first-strike and regular combat damage.
*   **First strike:** This creature deals combat damage before creatures without first strike or double strike.
*   **Flash:** You may cast this spell any time you could cast an instant.
*   **Flying:** This creature can't be blocked except by creatures with flying or reach.
*   **Haste:** This creature can attack and use abilities with the tap symbol ({T}) the turn it comes under your control.
*   **Hexproof:** This permanent can't be the target of spells or abilities your opponents control.
*   **Indestructible:** This permanent can't be destroyed by damage or by effects that say "destroy".
*   **Lifelink:** Damage dealt by this creature also causes its controller to gain that much life.
*   **Menace:** This creature can't be blocked except by two or more creatures.
*   **Reach:** This creature can block creatures with flying.
*   **Trample:** This creature can deal excess combat damage to the player or planeswalker it's attacking.
*   **Vigilance:** This creature doesn't tap when it attacks.
*   **Ward (Cost):** Whenever this permanent becomes the target of a spell or ability an opponent controls, counter it unless that player pays the ward cost.

### Deciduous Keyword Abilities
(Abilities that recur frequently without appearing in every set)

*   **Affinity for (Card Type):** This spell costs {1} less to cast for each permanent of the named type you control.
*   **Cycling (Cost):** Pay the cost and discard this card: draw a card.
*   **Fight:** Each of two creatures deals damage equal to its power to the other.
*   **Landwalk (Land Type):** This creature can't be blocked as long as the defending player controls a land of the named type.
*   **Phasing:** This permanent phases out during its controller's untap step; while phased out it's treated as though it doesn't exist.
*   **Protection from (Quality):** This permanent can't be blocked, targeted, dealt damage, enchanted, or equipped by anything with the named quality.
*   **Prowess:** Whenever you cast a noncreature spell, this creature gets +1/+1 until end of turn.
*   **Regenerate:** The next time this permanent would be destroyed this turn, instead tap it, remove it from combat, and remove all damage from it.
*   **Scry (Number):** Look at that many cards from the top of your library, then put any number of them on the bottom and the rest on top in any order.
*   **Shroud:** This permanent can't be the target of spells or abilities.

### Set-Specific Keyword Abilities

*   **Adapt (Number):** If this creature has no +1/+1 counters on it, put that many +1/+1 counters on it.
*   **Annihilator (Number):** Whenever this creature attacks, defending player sacrifices that many permanents.
*   **Bestow (Cost):** You may cast this card for its bestow cost as an Aura enchanting a creature; it becomes a creature again if the enchanted creature leaves the battlefield.
*   **Cascade:** When you cast this spell, exile cards from the top of your library until you exile a nonland card that costs less; you may cast it without paying its mana cost.
*   **Convoke:** Your creatures can help cast this spell; each creature you tap pays for {1} or one mana of that creature's color.
*   **Crew (Number):** Tap any number of untapped creatures you control with total power equal to or greater than the number: this Vehicle becomes an artifact creature until end of turn.
*   **Dash (Cost):** You may cast this spell for its dash cost; if you do, it gains haste and is returned to its owner's hand at the beginning of the next end step.
*   **Delve:** Each card you exile from your graveyard while casting this spell pays for {1}.
*   **Devotion to (Color):** Count each mana symbol of the named color in the mana costs of permanents you control.
*   **Dredge (Number):** If you would draw a card, you may instead put that many cards from the top of your library into your graveyard and return this card from your graveyard to your hand.
*   **Embalm (Cost):** Pay the cost and exile this card from your graveyard: create a token copy of it that's a white Zombie with no mana cost. Embalm only as a sorcery.
*   **Emerge (Cost):** You may cast this spell by sacrificing a creature and paying the emerge cost reduced by that creature's mana value.
*   **Escape (Cost):** You may cast this card from your graveyard for its escape cost, which includes exiling other cards from your graveyard.
*   **Evoke (Cost):** You may cast this spell for its evoke cost; if you do, sacrifice it when it enters the battlefield.
*   **Exalted:** Whenever a creature you control attacks alone, that creature gets +1/+1 until end of turn.
*   **Exploit:** When this creature enters the battlefield, you may sacrifice a creature to trigger its exploit ability.
*   **Extort:** Whenever you cast a spell, you may pay {W/B}; if you do, each opponent loses 1 life and you gain that much life.
*   **Flashback (Cost):** You may cast this card from your graveyard for its flashback cost, then exile it.
*   **Foretell (Cost):** During your turn, you may pay {2} and exile this card from your hand face down; cast it on a later turn for its foretell cost.
*   **Goad:** Until your next turn, that creature attacks each combat if able and attacks a player other than you if able.
*   **Infect:** This creature deals damage to creatures in the form of -1/-1 counters and to players in the form of poison counters.
*   **Kicker (Cost):** You may pay an additional cost as you cast this spell for an extra effect.
*   **Madness (Cost):** If you discard this card, you may cast it for its madness cost instead of putting it into your graveyard.
*   **Miracle (Cost):** You may cast this card for its miracle cost when you draw it if it's the first card you drew this turn.
*   **Morph (Cost):** You may cast this card face down as a 2/2 creature for {3}; turn it face up any time for its morph cost.
*   **Mutate (Cost):** If you cast this spell for its mutate cost, put it over or under target non-Human creature you own; they become one creature with the top card's characteristics and all abilities.
*   **Ninjutsu (Cost):** Pay the cost and return an unblocked attacker you control to hand: put this card onto the battlefield from your hand tapped and attacking.
*   **Persist:** When this creature dies, if it had no -1/-1 counters on it, return it to the battlefield under its owner's control with a -1/-1 counter on it.
*   **Proliferate:** Choose any number of permanents and/or players, then give each another counter of each kind already there.
*   **Prototype (Cost):** You may cast this spell with different mana cost, color, and size; it keeps its abilities and types.
*   **Riot:** This creature enters the battlefield with your choice of a +1/+1 counter or haste.
*   **Storm:** When you cast this spell, copy it for each spell cast before it this turn.
*   **Surveil (Number):** Look at that many cards from the top of your library, then put any number of them into your graveyard and the rest on top in any order.
*   **Suspend (Number, Cost):** Rather than cast this card from your hand, pay the cost and exile it with that many time counters on it. At the beginning of your upkeep, remove a time counter; when the last is removed, cast it without paying its mana cost.
*   **Toxic (Number):** Players dealt combat damage by this creature also get that many poison counters.
*   **Undying:** When this creature dies, if it had no +1/+1 counters on it, return it to the battlefield under its owner's control with a +1/+1 counter on it.
*   **Unearth (Cost):** Pay the cost: return this card from your graveyard to the battlefield; it gains haste and is exiled at the beginning of the next end step or if it would leave the battlefield.
*   **Wither:** This deals damage to creatures in the form of -1/-1 counters.

### Keyword Actions

*   **Amass (Number):** Put that many +1/+1 counters on an Army you control; if you don't control one, create a 0/0 black Zombie Army creature token first.
*   **Connive:** Draw a card, then discard a card. If you discarded a nonland card, put a +1/+1 counter on the conniving creature.
*   **Explore:** Reveal the top card of your library. Put that card into your hand if it's a land; otherwise put a +1/+1 counter on the exploring creature, then put the card back or into your graveyard.
*   **Investigate:** Create a colorless Clue artifact token with "{2}, Sacrifice this artifact: Draw a card."
*   **Mill (Number):** Put that many cards from the top of a library into its owner's graveyard.
*   **Populate:** Create a token that's a copy of a creature token you control.
*   **Support (Number):** Put a +1/+1 counter on each of up to that many target creatures.
*   **Treasure:** A colorless Treasure artifact token with "{T}, Sacrifice this artifact: Add one mana of any color."

### Ability Words
(Ability words have no rules meaning; they flag a shared theme)

*   **Battalion:** Triggers whenever this creature and at least two other creatures attack.
*   **Constellation:** Triggers whenever an enchantment enters the battlefield under your control.
*   **Delirium:** Active if there are four or more card types among cards in your graveyard.
*   **Domain:** Scales with the number of basic land types among lands you control.
*   **Ferocious:** Active if you control a creature with power 4 or greater.
*   **Landfall:** Triggers whenever a land enters the battlefield under your control.
*   **Metalcraft:** Active if you control three or more artifacts.
*   **Raid:** Active if you attacked with a creature this turn.
*   **Revolt:** Active if a permanent you controlled left the battlefield this turn.
*   **Threshold:** Active if seven or more cards are in your graveyard.
`
